package schedules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wolfman30/medassist/internal/database"
)

const scheduleColumns = `id, doctor_name, specialty, appointment_date, start_time, end_time, location, available, notes, created_at`

// PostgresRepository stores slots in the schedules table.
type PostgresRepository struct {
	pool database.PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool database.PgxPool) *PostgresRepository {
	if pool == nil {
		panic("schedules: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	query := `
		INSERT INTO schedules (id, doctor_name, specialty, appointment_date, start_time, end_time, location, available, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		s.ID, s.DoctorName, s.Specialty, s.AppointmentDate, s.StartTime, s.EndTime, s.Location, s.Available, s.Notes,
	).Scan(&s.CreatedAt); err != nil {
		return fmt.Errorf("schedules: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrScheduleNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("schedules: get failed: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY appointment_date ASC, start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("schedules: list failed: %w", err)
	}
	return collectSchedules(rows)
}

func (r *PostgresRepository) Update(ctx context.Context, s *Schedule) error {
	query := `
		UPDATE schedules
		SET doctor_name = $2, specialty = $3, appointment_date = $4, start_time = $5, end_time = $6, location = $7, notes = $8
		WHERE id = $1
	`
	ct, err := r.pool.Exec(ctx, query, s.ID, s.DoctorName, s.Specialty, s.AppointmentDate, s.StartTime, s.EndTime, s.Location, s.Notes)
	if err != nil {
		return fmt.Errorf("schedules: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrScheduleNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("schedules: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PostgresRepository) ListAvailable(ctx context.Context, filter AvailabilityFilter) ([]*Schedule, error) {
	specialtyClause := `specialty = $1`
	if filter.CaseInsensitive {
		specialtyClause = `lower(specialty) = lower($1)`
	}
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		WHERE available = true AND ` + specialtyClause
	args := []any{filter.Specialty}
	if !filter.From.IsZero() {
		query += ` AND appointment_date >= $2`
		args = append(args, filter.From)
	}
	query += ` ORDER BY appointment_date ASC, start_time ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schedules: list available failed: %w", err)
	}
	return collectSchedules(rows)
}

// Claim performs the availability check and the flip as one conditional
// update. When no row changes it looks the slot up only to pick the error.
func (r *PostgresRepository) Claim(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrScheduleNotFound
	}
	ct, err := r.pool.Exec(ctx, `UPDATE schedules SET available = false WHERE id = $1 AND available = true`, id)
	if err != nil {
		return fmt.Errorf("schedules: claim failed: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schedules WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("schedules: claim lookup failed: %w", err)
	}
	if !exists {
		return ErrScheduleNotFound
	}
	return ErrScheduleUnavailable
}

func (r *PostgresRepository) Release(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrScheduleNotFound
	}
	ct, err := r.pool.Exec(ctx, `UPDATE schedules SET available = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("schedules: release failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	if err := row.Scan(
		&s.ID,
		&s.DoctorName,
		&s.Specialty,
		&s.AppointmentDate,
		&s.StartTime,
		&s.EndTime,
		&s.Location,
		&s.Available,
		&s.Notes,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSchedules(rows pgx.Rows) ([]*Schedule, error) {
	defer rows.Close()
	var out []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("schedules: scan failed: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedules: rows failed: %w", err)
	}
	return out, nil
}
