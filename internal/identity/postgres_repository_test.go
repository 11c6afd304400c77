package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func TestPostgresCreateUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "Mona", 31, "+201012345678", "mona@example.com", "hash", "user").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	u := &User{Name: "Mona", Age: 31, Phone: "+201012345678", Email: "mona@example.com", PasswordHash: "hash", Role: RoleUser}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &User{Email: "mona@example.com", Role: RoleUser})
	assert.ErrorIs(t, err, ErrEmailTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, name, age, phone, email, password_hash, role, created_at FROM users WHERE email = \$1`).
		WithArgs("mona@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "age", "phone", "email", "password_hash", "role", "created_at"}).
			AddRow(id, "Mona", 31, "+201012345678", "mona@example.com", "hash", "admin", now))

	u, err := repo.GetByEmail(context.Background(), " MONA@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, RoleAdmin, u.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "age", "phone", "email", "password_hash", "role", "created_at"}))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRoleMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()

	mock.ExpectExec(`UPDATE users SET role = \$2 WHERE id = \$1`).
		WithArgs(id, "admin").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateRole(context.Background(), id, RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}
