package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wolfman30/medassist/internal/database"
)

const appointmentColumns = `id, patient_name, patient_age, patient_phone, patient_email,
	COALESCE(patient_user_id::text, ''), doctor_name, specialty, appointment_date, start_time, end_time,
	location, COALESCE(schedule_id::text, ''), status, notes, created_at`

// PostgresRepository stores appointments in the appointments table.
type PostgresRepository struct {
	pool database.PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool database.PgxPool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO appointments (
			id, patient_name, patient_age, patient_phone, patient_email, patient_user_id,
			doctor_name, specialty, appointment_date, start_time, end_time, location, schedule_id, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		a.ID, a.Patient.Name, a.Patient.Age, a.Patient.Phone, a.Patient.Email, nullable(a.Patient.UserID),
		a.Schedule.DoctorName, a.Schedule.Specialty, a.Schedule.AppointmentDate, a.Schedule.StartTime, a.Schedule.EndTime,
		a.Schedule.Location, nullable(a.Schedule.ScheduleID), string(a.Status), a.Notes,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAppointmentNotFound
	}
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: get failed: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID, email string) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE ($1 <> '' AND patient_user_id::text = $1)
		   OR ($2 <> '' AND lower(patient_email) = $2)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("appointments: list for user failed: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PostgresRepository) Update(ctx context.Context, a *Appointment, expect Status) error {
	query := `
		UPDATE appointments
		SET patient_email = $2, patient_user_id = $3, doctor_name = $4, specialty = $5, appointment_date = $6,
			start_time = $7, end_time = $8, location = $9, schedule_id = $10, status = $11, notes = $12
		WHERE id = $1 AND status = $13
	`
	ct, err := r.pool.Exec(ctx, query,
		a.ID, a.Patient.Email, nullable(a.Patient.UserID), a.Schedule.DoctorName, a.Schedule.Specialty,
		a.Schedule.AppointmentDate, a.Schedule.StartTime, a.Schedule.EndTime, a.Schedule.Location,
		nullable(a.Schedule.ScheduleID), string(a.Status), a.Notes, string(expect),
	)
	if err != nil {
		return fmt.Errorf("appointments: update failed: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return r.staleOrMissing(ctx, a.ID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string, expect Status) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrAppointmentNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND status = $2`, id, string(expect))
	if err != nil {
		return fmt.Errorf("appointments: delete failed: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return r.staleOrMissing(ctx, id)
}

// staleOrMissing explains a conditional write that touched no row.
func (r *PostgresRepository) staleOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("appointments: existence check failed: %w", err)
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrStaleAppointment
}

func (r *PostgresRepository) HasActiveAppointment(ctx context.Context, scheduleID string) (bool, error) {
	if _, err := uuid.Parse(scheduleID); err != nil {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM appointments WHERE schedule_id = $1 AND status IN ('pending', 'confirmed'))`
	if err := r.pool.QueryRow(ctx, query, scheduleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointments: reference check failed: %w", err)
	}
	return exists, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(
		&a.ID, &a.Patient.Name, &a.Patient.Age, &a.Patient.Phone, &a.Patient.Email, &a.Patient.UserID,
		&a.Schedule.DoctorName, &a.Schedule.Specialty, &a.Schedule.AppointmentDate, &a.Schedule.StartTime,
		&a.Schedule.EndTime, &a.Schedule.Location, &a.Schedule.ScheduleID, &status, &a.Notes, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows failed: %w", err)
	}
	return out, nil
}
