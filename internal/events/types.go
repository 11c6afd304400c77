package events

import "time"

// Appointment lifecycle event types.
const (
	AppointmentCreated       = "appointment.created.v1"
	AppointmentAssigned      = "appointment.assigned.v1"
	AppointmentStatusChanged = "appointment.status_changed.v1"
	AppointmentCancelled     = "appointment.cancelled.v1"
	AppointmentDeleted       = "appointment.deleted.v1"
)

// AppointmentAggregate prefixes the aggregate key of appointment events.
const AppointmentAggregate = "appointment"

// AppointmentEventV1 is the payload shared by every appointment event. Type
// selects which lifecycle change it describes.
type AppointmentEventV1 struct {
	Type           string    `json:"-"`
	AppointmentID  string    `json:"appointment_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	ScheduleID     string    `json:"schedule_id,omitempty"`
	Specialty      string    `json:"specialty"`
	PatientUserID  string    `json:"patient_user_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	AppointmentAt  time.Time `json:"appointment_date"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e AppointmentEventV1) EventType() string { return e.Type }
