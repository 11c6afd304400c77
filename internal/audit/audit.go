// Package audit records administrative actions in an append-only table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wolfman30/medassist/pkg/logging"
)

// EventType names an administrative action.
type EventType string

const (
	EventUserRoleUpdated          EventType = "admin.user_role_updated"
	EventUserDeleted              EventType = "admin.user_deleted"
	EventAppointmentStatusUpdated EventType = "admin.appointment_status_updated"
	EventAppointmentDeleted       EventType = "admin.appointment_deleted"
	EventAppointmentAssigned      EventType = "admin.appointment_assigned"
)

// Event is an immutable audit record.
type Event struct {
	ID            string          `json:"id"`
	EventType     EventType       `json:"event_type"`
	ActorID       string          `json:"actor_id"`
	TargetID      string          `json:"target_id"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Recorder is implemented by Service and by test doubles.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Service writes events through database/sql.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewService creates an audit service. A nil db turns Record into a log line.
func NewService(db *sql.DB, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger}
}

// Record inserts the event.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}
	if s.db == nil {
		s.logger.Info("audit event", "event_type", event.EventType, "actor_id", event.ActorID, "target_id", event.TargetID)
		return nil
	}

	query := `
		INSERT INTO admin_audit_events (
			id, event_type, actor_id, target_id, changed_fields, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.ActorID,
		event.TargetID,
		pq.Array(event.ChangedFields),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record event: %w", err)
	}
	return nil
}

// List returns the most recent events for a target, newest first.
func (s *Service) List(ctx context.Context, targetID string, limit int) ([]Event, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, event_type, actor_id, target_id, changed_fields, details, created_at
		FROM admin_audit_events
		WHERE target_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var eventType string
		var details []byte
		if err := rows.Scan(&e.ID, &eventType, &e.ActorID, &e.TargetID, pq.Array(&e.ChangedFields), &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.EventType = EventType(eventType)
		e.Details = details
		events = append(events, e)
	}
	return events, rows.Err()
}

// Safe wraps a Recorder so failures are logged and never returned. Admin
// operations must not fail because the audit insert did.
func Safe(rec Recorder, logger *logging.Logger) Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return safeRecorder{next: rec, logger: logger}
}

type safeRecorder struct {
	next   Recorder
	logger *logging.Logger
}

func (s safeRecorder) Record(ctx context.Context, event Event) error {
	if s.next == nil {
		return nil
	}
	if err := s.next.Record(ctx, event); err != nil {
		s.logger.Warn("audit record failed", "error", err, "event_type", event.EventType, "target_id", event.TargetID)
	}
	return nil
}

// Details marshals v for Event.Details, dropping marshal failures.
func Details(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
