package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/archive"
	"github.com/wolfman30/medassist/internal/audit"
	"github.com/wolfman30/medassist/internal/events"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/internal/schedules"
	"github.com/wolfman30/medassist/internal/triage"
	"github.com/wolfman30/medassist/pkg/logging"
)

var engineTracer = otel.Tracer("medassist.internal.appointments")

const (
	notesMaxRunes       = 500
	bookingLeadDays     = 7
	bookingStartTime    = "09:00"
	bookingEndTime      = "10:00"
	bookingRequestTitle = "booking request via chat"
)

// Notifier delivers patient notifications. Implementations must not block
// on delivery and never report failures back to the engine.
type Notifier interface {
	AppointmentConfirmed(ctx context.Context, a Appointment)
	AppointmentCancelled(ctx context.Context, a Appointment, selfService bool)
	BookingRequested(ctx context.Context, a Appointment)
}

// SlotStore is the part of the schedule store the engine needs.
type SlotStore interface {
	GetByID(ctx context.Context, id string) (*schedules.Schedule, error)
	ListAvailable(ctx context.Context, filter schedules.AvailabilityFilter) ([]*schedules.Schedule, error)
	Claim(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// UserLookup resolves the acting user's record for backfilling contact data.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
}

// EventRecorder appends lifecycle events to the outbox.
type EventRecorder interface {
	Append(ctx context.Context, aggregate string, evt events.CanonicalEvent) (events.Envelope, error)
}

// Archiver keeps a de-identified copy of deleted appointments.
type Archiver interface {
	ArchiveAppointment(ctx context.Context, record *archive.AppointmentRecord) error
}

// Service is the booking and assignment engine. Every bind, release and
// status transition of an appointment goes through it.
type Service struct {
	repo     Repository
	slots    SlotStore
	users    UserLookup
	notifier Notifier
	events   EventRecorder
	archiver Archiver
	audit    audit.Recorder
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithUsers(u UserLookup) Option { return func(s *Service) { s.users = u } }

func WithEvents(rec EventRecorder) Option { return func(s *Service) { s.events = rec } }

func WithArchiver(a Archiver) Option { return func(s *Service) { s.archiver = a } }

func WithAudit(rec audit.Recorder) Option { return func(s *Service) { s.audit = rec } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, slots SlotStore, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if slots == nil {
		panic("appointments: slot store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, slots: slots, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	return s
}

var _ schedules.ReferenceChecker = (*Service)(nil)

// HasActiveAppointment guards schedule deletion.
func (s *Service) HasActiveAppointment(ctx context.Context, scheduleID string) (bool, error) {
	return s.repo.HasActiveAppointment(ctx, scheduleID)
}

// Create books an appointment. With a schedule_id the slot is claimed and
// the appointment is confirmed; otherwise it is stored as a pending request.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor *identity.Principal) (appt *Appointment, err error) {
	ctx, span := engineTracer.Start(ctx, "appointments.create")
	defer func() { s.finish(span, "create", err) }()

	req.normalize()
	if err := req.validatePatient(); err != nil {
		return nil, err
	}
	patient := Patient{Name: req.Name, Age: req.Age, Phone: req.Phone, Email: req.Email}
	if actor != nil && actor.UserID != "" {
		patient.UserID = actor.UserID
		s.backfillContact(ctx, actor.UserID, &patient)
	}

	a := &Appointment{
		Patient:   patient,
		Notes:     truncateRunes(req.Notes, notesMaxRunes),
		CreatedAt: s.now().UTC(),
	}

	if req.ScheduleID != "" {
		slot, err := s.claim(ctx, req.ScheduleID)
		if err != nil {
			return nil, err
		}
		a.Schedule = slot
		a.Status = StatusConfirmed
		if err := s.repo.Create(ctx, a); err != nil {
			s.release(ctx, slot.ScheduleID, "create failed")
			return nil, err
		}
	} else {
		slot, err := req.explicitSlot()
		if err != nil {
			return nil, err
		}
		a.Schedule = slot
		a.Status = StatusPending
		if err := s.repo.Create(ctx, a); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("appointment.id", a.ID), attribute.String("appointment.status", string(a.Status)))

	s.recordEvent(ctx, events.AppointmentCreated, a, "", patient.UserID)
	s.logger.Info("appointment created", "appointment_id", a.ID, "status", a.Status, "schedule_id", a.Schedule.ScheduleID)
	if a.Status == StatusConfirmed {
		s.notifier.AppointmentConfirmed(ctx, *a)
	} else {
		s.notifier.BookingRequested(ctx, *a)
	}
	return a, nil
}

// Assign binds an available slot of the same specialty to a pending appointment.
func (s *Service) Assign(ctx context.Context, actor identity.Principal, req AssignRequest) (appt *Appointment, err error) {
	ctx, span := engineTracer.Start(ctx, "appointments.assign", trace.WithAttributes(
		attribute.String("appointment.id", req.AppointmentID),
		attribute.String("schedule.id", req.ScheduleID),
	))
	defer func() { s.finish(span, "assign", err) }()

	appointmentID := strings.TrimSpace(req.AppointmentID)
	scheduleID := strings.TrimSpace(req.ScheduleID)
	if appointmentID == "" || scheduleID == "" {
		return nil, apperr.E(apperr.InvalidInput, "appointment_id and schedule_id are required")
	}

	current, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, ErrNotPending
	}
	sched, err := s.slots.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !sched.Available {
		return nil, schedules.ErrScheduleUnavailable
	}
	if !schedules.SameSpecialty(sched.Specialty, current.Schedule.Specialty) {
		return nil, ErrSpecialtyMismatch
	}

	slot, err := s.claim(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	updated := *current
	updated.Schedule = slot
	updated.Status = StatusConfirmed
	if err := s.repo.Update(ctx, &updated, StatusPending); err != nil {
		s.release(ctx, scheduleID, "assign failed")
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		EventType:     audit.EventAppointmentAssigned,
		ActorID:       actor.UserID,
		TargetID:      updated.ID,
		ChangedFields: []string{"schedule", "status"},
		Details:       audit.Details(map[string]string{"schedule_id": scheduleID}),
	})
	s.recordEvent(ctx, events.AppointmentAssigned, &updated, current.Status, actor.UserID)
	s.logger.Info("appointment assigned", "appointment_id", updated.ID, "schedule_id", scheduleID, "actor_id", actor.UserID)
	s.notifier.AppointmentConfirmed(ctx, updated)
	return &updated, nil
}

// UpdateStatus moves an appointment through the status machine on behalf of an admin.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Principal, id, value string) (change *StatusChange, err error) {
	ctx, span := engineTracer.Start(ctx, "appointments.update_status", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer func() { s.finish(span, "update_status", err) }()

	status, err := ParseStatus(value)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := current.Status
	if !CanTransition(previous, status) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.transition(ctx, current, status)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		EventType:     audit.EventAppointmentStatusUpdated,
		ActorID:       actor.UserID,
		TargetID:      id,
		ChangedFields: []string{"status"},
		Details:       audit.Details(map[string]Status{"previous": previous, "status": status}),
	})
	if previous != status {
		eventType := events.AppointmentStatusChanged
		if status == StatusCancelled {
			eventType = events.AppointmentCancelled
		}
		s.recordEvent(ctx, eventType, updated, previous, actor.UserID)
	}
	s.logger.Info("appointment status updated", "appointment_id", id, "previous_status", previous, "status", status, "actor_id", actor.UserID)

	if status == StatusCancelled && previous != StatusCancelled {
		s.notifier.AppointmentCancelled(ctx, *updated, false)
	}
	if status == StatusConfirmed && previous != StatusConfirmed {
		s.notifier.AppointmentConfirmed(ctx, *updated)
	}
	return &StatusChange{Appointment: updated, PreviousStatus: previous}, nil
}

// CancelOwn lets a patient cancel an appointment booked under their account.
func (s *Service) CancelOwn(ctx context.Context, actor *identity.Principal, id string) (appt *Appointment, err error) {
	ctx, span := engineTracer.Start(ctx, "appointments.cancel_own", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer func() { s.finish(span, "cancel_own", err) }()

	if actor == nil || actor.UserID == "" {
		return nil, ErrAuthRequired
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Patient.UserID != actor.UserID {
		return nil, ErrNotOwner
	}
	if !CanTransition(current.Status, StatusCancelled) {
		return nil, ErrInvalidTransition
	}

	previous := current.Status
	updated, err := s.transition(ctx, current, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if previous != StatusCancelled {
		s.recordEvent(ctx, events.AppointmentCancelled, updated, previous, actor.UserID)
	}
	s.logger.Info("appointment cancelled by patient", "appointment_id", id, "previous_status", previous)
	s.notifier.AppointmentCancelled(ctx, *updated, true)
	return updated, nil
}

// Delete removes an appointment, freeing its slot unless it was cancelled.
// The row is removed only while it still has the status read here.
func (s *Service) Delete(ctx context.Context, actor identity.Principal, id string) (err error) {
	ctx, span := engineTracer.Start(ctx, "appointments.delete", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer func() { s.finish(span, "delete", err) }()

	snapshot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, snapshot.Status); err != nil {
		return err
	}
	// A cancelled appointment gave its slot up already; it may be rebooked.
	scheduleID := snapshot.Schedule.ScheduleID
	if scheduleID != "" && snapshot.Status != StatusCancelled {
		s.release(ctx, scheduleID, "appointment deleted")
	}

	deletedAt := s.now().UTC()
	s.recordAudit(ctx, audit.Event{
		EventType: audit.EventAppointmentDeleted,
		ActorID:   actor.UserID,
		TargetID:  id,
		Details:   audit.Details(map[string]string{"status": string(snapshot.Status), "schedule_id": scheduleID}),
	})
	s.recordEvent(ctx, events.AppointmentDeleted, snapshot, snapshot.Status, actor.UserID)
	s.archive(ctx, snapshot, actor.UserID, deletedAt)
	s.logger.Info("appointment deleted", "appointment_id", id, "actor_id", actor.UserID)
	s.notifier.AppointmentCancelled(ctx, *snapshot, false)
	return nil
}

// AvailableForSpecialty lists future open slots matching the specialty
// case-insensitively. Admins use it to pick assignment candidates.
func (s *Service) AvailableForSpecialty(ctx context.Context, specialty string) ([]*schedules.Schedule, error) {
	specialty = strings.TrimSpace(specialty)
	if specialty == "" {
		return nil, apperr.E(apperr.InvalidInput, "specialty is required")
	}
	return s.slots.ListAvailable(ctx, schedules.AvailabilityFilter{
		Specialty:       specialty,
		CaseInsensitive: true,
		From:            s.now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every appointment, newest first.
func (s *Service) List(ctx context.Context) ([]*Appointment, error) {
	return s.repo.List(ctx)
}

// ListForUser returns the caller's appointments matched by account or email.
func (s *Service) ListForUser(ctx context.Context, actor *identity.Principal) ([]*Appointment, error) {
	if actor == nil || actor.UserID == "" {
		return nil, ErrAuthRequired
	}
	return s.repo.ListForUser(ctx, actor.UserID, identity.NormalizeEmail(actor.Email))
}

// RequestBooking stores an unassigned request raised from the chat and
// tells the patient it was received.
func (s *Service) RequestBooking(ctx context.Context, actor *identity.Principal, req BookingRequest) (appt *Appointment, err error) {
	ctx, span := engineTracer.Start(ctx, "appointments.request_booking")
	defer func() { s.finish(span, "request_booking", err) }()

	if actor == nil || actor.UserID == "" {
		return nil, ErrAuthRequired
	}
	patient := Patient{
		Name:   strings.TrimSpace(req.Name),
		Age:    req.Age,
		Phone:  strings.TrimSpace(req.Phone),
		Email:  identity.NormalizeEmail(req.Email),
		UserID: actor.UserID,
	}
	if patient.Name == "" || patient.Phone == "" {
		return nil, apperr.E(apperr.InvalidInput, "name and phone are required")
	}
	s.backfillContact(ctx, actor.UserID, &patient)

	specialty := strings.TrimSpace(req.Specialty)
	if specialty == "" {
		specialty = triage.DefaultSpecialty
	}
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, bookingLeadDays)
	notes := truncateRunes(strings.TrimSpace(req.Message), notesMaxRunes)
	if notes == "" {
		notes = bookingRequestTitle
	}

	a := &Appointment{
		Patient: patient,
		Schedule: Slot{
			DoctorName:      Unassigned,
			Specialty:       specialty,
			AppointmentDate: day,
			StartTime:       bookingStartTime,
			EndTime:         bookingEndTime,
			Location:        Unassigned,
		},
		Status:    StatusPending,
		Notes:     notes,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, events.AppointmentCreated, a, "", actor.UserID)
	s.logger.Info("booking request stored", "appointment_id", a.ID, "specialty", specialty)
	s.notifier.BookingRequested(ctx, *a)
	return a, nil
}

// transition persists a status change with a compare-and-set on the status
// read by the caller, then releases the slot on cancellation. A lost race
// returns ErrStaleAppointment and leaves the slot to the winning write.
func (s *Service) transition(ctx context.Context, current *Appointment, status Status) (*Appointment, error) {
	previous := current.Status
	updated := *current
	updated.Status = status
	if err := s.repo.Update(ctx, &updated, previous); err != nil {
		return nil, err
	}
	if scheduleID := current.Schedule.ScheduleID; status == StatusCancelled && previous != StatusCancelled && scheduleID != "" {
		s.release(ctx, scheduleID, "appointment cancelled")
	}
	return &updated, nil
}

// claim takes the slot and returns its snapshot. The snapshot is read after
// the claim so it reflects the slot actually bound.
func (s *Service) claim(ctx context.Context, scheduleID string) (Slot, error) {
	if err := s.slots.Claim(ctx, scheduleID); err != nil {
		if errors.Is(err, schedules.ErrScheduleUnavailable) {
			s.metrics.ObserveClaimConflict()
		}
		return Slot{}, err
	}
	sched, err := s.slots.GetByID(ctx, scheduleID)
	if err != nil {
		s.release(ctx, scheduleID, "snapshot read failed")
		return Slot{}, fmt.Errorf("appointments: read claimed schedule: %w", err)
	}
	return SnapshotOf(sched), nil
}

// release frees a slot. A missing slot is logged and ignored so orphan
// references never block a cancel or delete.
func (s *Service) release(ctx context.Context, scheduleID, reason string) {
	if err := s.slots.Release(ctx, scheduleID); err != nil {
		if errors.Is(err, schedules.ErrScheduleNotFound) {
			s.logger.Warn("released schedule no longer exists", "schedule_id", scheduleID, "reason", reason)
			return
		}
		s.logger.Error("schedule release failed", "error", err, "schedule_id", scheduleID, "reason", reason)
	}
}

func (s *Service) backfillContact(ctx context.Context, userID string, p *Patient) {
	if s.users == nil || (p.Email != "" && p.Age > 0) {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("user lookup for backfill failed", "error", err, "user_id", userID)
		return
	}
	if p.Email == "" {
		p.Email = user.Email
	}
	if p.Age <= 0 {
		p.Age = user.Age
	}
}

func (s *Service) recordEvent(ctx context.Context, eventType string, a *Appointment, previous Status, actorID string) {
	if s.events == nil {
		return
	}
	evt := events.AppointmentEventV1{
		Type:           eventType,
		AppointmentID:  a.ID,
		Status:         string(a.Status),
		PreviousStatus: string(previous),
		ScheduleID:     a.Schedule.ScheduleID,
		Specialty:      a.Schedule.Specialty,
		PatientUserID:  a.Patient.UserID,
		ActorID:        actorID,
		AppointmentAt:  a.Schedule.AppointmentDate,
		OccurredAt:     s.now().UTC(),
	}
	if _, err := s.events.Append(ctx, events.AggregateKey(events.AppointmentAggregate, a.ID), evt); err != nil {
		s.logger.Warn("appointment event not recorded", "error", err, "event_type", eventType, "appointment_id", a.ID)
	}
}

func (s *Service) recordAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("audit record failed", "error", err, "event_type", event.EventType)
	}
}

func (s *Service) archive(ctx context.Context, a *Appointment, actorID string, deletedAt time.Time) {
	if s.archiver == nil {
		return
	}
	record := &archive.AppointmentRecord{
		Version:         archive.RecordVersion,
		AppointmentID:   a.ID,
		Status:          string(a.Status),
		Specialty:       a.Schedule.Specialty,
		DoctorName:      a.Schedule.DoctorName,
		AppointmentDate: a.Schedule.AppointmentDate,
		StartTime:       a.Schedule.StartTime,
		EndTime:         a.Schedule.EndTime,
		Location:        a.Schedule.Location,
		ScheduleID:      a.Schedule.ScheduleID,
		PatientAge:      a.Patient.Age,
		PhoneHash:       archive.HashPhone(a.Patient.Phone),
		HadAccount:      a.Patient.UserID != "",
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		DeletedBy:       actorID,
		DeletedAt:       deletedAt,
	}
	if err := s.archiver.ArchiveAppointment(ctx, record); err != nil {
		s.logger.Warn("appointment archive failed", "error", err, "appointment_id", a.ID)
	}
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	outcome := "ok"
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.ObserveBooking(operation, outcome)
	span.End()
}

type noopNotifier struct{}

func (noopNotifier) AppointmentConfirmed(context.Context, Appointment)       {}
func (noopNotifier) AppointmentCancelled(context.Context, Appointment, bool) {}
func (noopNotifier) BookingRequested(context.Context, Appointment)           {}
