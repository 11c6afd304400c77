package appointments

import (
	"strings"
	"time"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/schedules"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Unassigned is the doctor and location placeholder for requests without a slot.
const Unassigned = "unassigned"

// ParseStatus validates a wire status value.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, nil
	}
	return "", apperr.E(apperr.InvalidInput, "invalid status value")
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether from -> to is allowed. Same-state writes
// are always allowed and treated as no-ops.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted
	}
	return false
}

// Patient is the contact snapshot stored on an appointment.
type Patient struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Phone  string `json:"phone"`
	Email  string `json:"email,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// Slot is the schedule snapshot copied at bind time. Later edits to the
// source schedule never change it.
type Slot struct {
	DoctorName      string    `json:"doctor_name"`
	Specialty       string    `json:"specialty"`
	AppointmentDate time.Time `json:"appointment_date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Location        string    `json:"location"`
	ScheduleID      string    `json:"schedule_id,omitempty"`
}

// Appointment is a patient booking.
type Appointment struct {
	ID        string    `json:"id"`
	Patient   Patient   `json:"patient"`
	Schedule  Slot      `json:"schedule"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotOf copies the descriptive fields of a schedule.
func SnapshotOf(s *schedules.Schedule) Slot {
	return Slot{
		DoctorName:      s.DoctorName,
		Specialty:       s.Specialty,
		AppointmentDate: s.AppointmentDate,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Location:        s.Location,
		ScheduleID:      s.ID,
	}
}

// CreateRequest is the body of POST /appointments.
type CreateRequest struct {
	Name            string `json:"name"`
	Age             int    `json:"age"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	DoctorName      string `json:"doctor_name"`
	Specialty       string `json:"specialty"`
	AppointmentDate string `json:"appointment_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Location        string `json:"location"`
	ScheduleID      string `json:"schedule_id"`
	Notes           string `json:"notes"`
}

func (r *CreateRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.DoctorName = strings.TrimSpace(r.DoctorName)
	r.Specialty = strings.TrimSpace(r.Specialty)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	r.Location = strings.TrimSpace(r.Location)
	r.ScheduleID = strings.TrimSpace(r.ScheduleID)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r CreateRequest) validatePatient() error {
	if r.Name == "" || r.Age <= 0 || r.Phone == "" {
		return apperr.E(apperr.InvalidInput, "patient name, age and phone are required")
	}
	return nil
}

// explicitSlot builds the requested slot when no schedule_id was given.
func (r CreateRequest) explicitSlot() (Slot, error) {
	if r.DoctorName == "" || r.Specialty == "" || r.AppointmentDate == "" || r.StartTime == "" || r.EndTime == "" || r.Location == "" {
		return Slot{}, apperr.E(apperr.InvalidInput, "doctor and appointment details are required")
	}
	date, err := schedules.ParseDate(r.AppointmentDate)
	if err != nil {
		return Slot{}, err
	}
	return Slot{
		DoctorName:      r.DoctorName,
		Specialty:       r.Specialty,
		AppointmentDate: date,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Location:        r.Location,
	}, nil
}

// AssignRequest is the body of POST /appointments/assign.
type AssignRequest struct {
	AppointmentID string `json:"appointment_id"`
	ScheduleID    string `json:"schedule_id"`
}

// StatusRequest is the body of PUT /appointments/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// StatusChange is returned by UpdateStatus.
type StatusChange struct {
	Appointment    *Appointment `json:"appointment"`
	PreviousStatus Status       `json:"previous_status"`
}

// BookingRequest is the chat "book by SMS" payload.
type BookingRequest struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Specialty string `json:"specialty"`
	Message   string `json:"message"`
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
