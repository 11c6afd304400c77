package schedules

import (
	"strings"
	"time"

	"github.com/wolfman30/medassist/internal/apperr"
)

// DateLayout is the calendar date format accepted on the wire.
const DateLayout = "2006-01-02"

// Schedule is a doctor-offered time window that one appointment can hold.
type Schedule struct {
	ID              string    `json:"id"`
	DoctorName      string    `json:"doctor_name"`
	Specialty       string    `json:"specialty"`
	AppointmentDate time.Time `json:"appointment_date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Location        string    `json:"location"`
	Available       bool      `json:"available"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateScheduleRequest is the admin payload for a new slot.
type CreateScheduleRequest struct {
	DoctorName      string `json:"doctor_name"`
	Specialty       string `json:"specialty"`
	AppointmentDate string `json:"appointment_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Location        string `json:"location"`
	Notes           string `json:"notes"`
}

// UpdateScheduleRequest edits descriptive fields. Availability is owned by
// the booking engine and cannot be set here.
type UpdateScheduleRequest struct {
	DoctorName      *string `json:"doctor_name"`
	Specialty       *string `json:"specialty"`
	AppointmentDate *string `json:"appointment_date"`
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
	Location        *string `json:"location"`
	Notes           *string `json:"notes"`
}

// AvailabilityFilter selects open slots for a specialty.
type AvailabilityFilter struct {
	Specialty       string
	CaseInsensitive bool
	// From drops slots dated before it; zero keeps past slots.
	From time.Time
}

// Build validates the request and returns a new available slot.
func (r *CreateScheduleRequest) Build() (*Schedule, error) {
	s := &Schedule{
		DoctorName: strings.TrimSpace(r.DoctorName),
		Specialty:  strings.TrimSpace(r.Specialty),
		StartTime:  strings.TrimSpace(r.StartTime),
		EndTime:    strings.TrimSpace(r.EndTime),
		Location:   strings.TrimSpace(r.Location),
		Notes:      strings.TrimSpace(r.Notes),
		Available:  true,
	}
	if s.DoctorName == "" || s.Specialty == "" || s.Location == "" {
		return nil, apperr.E(apperr.InvalidInput, "doctor_name, specialty and location are required")
	}
	date, err := ParseDate(r.AppointmentDate)
	if err != nil {
		return nil, err
	}
	s.AppointmentDate = date
	if err := ValidateTimeRange(s.StartTime, s.EndTime); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply copies the set fields onto s and revalidates the result.
func (r *UpdateScheduleRequest) Apply(s *Schedule) error {
	if r.DoctorName != nil {
		s.DoctorName = strings.TrimSpace(*r.DoctorName)
	}
	if r.Specialty != nil {
		s.Specialty = strings.TrimSpace(*r.Specialty)
	}
	if r.AppointmentDate != nil {
		date, err := ParseDate(*r.AppointmentDate)
		if err != nil {
			return err
		}
		s.AppointmentDate = date
	}
	if r.StartTime != nil {
		s.StartTime = strings.TrimSpace(*r.StartTime)
	}
	if r.EndTime != nil {
		s.EndTime = strings.TrimSpace(*r.EndTime)
	}
	if r.Location != nil {
		s.Location = strings.TrimSpace(*r.Location)
	}
	if r.Notes != nil {
		s.Notes = strings.TrimSpace(*r.Notes)
	}
	if s.DoctorName == "" || s.Specialty == "" || s.Location == "" {
		return apperr.E(apperr.InvalidInput, "doctor_name, specialty and location are required")
	}
	return ValidateTimeRange(s.StartTime, s.EndTime)
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns a UTC time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperr.E(apperr.InvalidInput, "appointment_date is required")
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.E(apperr.InvalidInput, "appointment_date must be YYYY-MM-DD")
}

// ValidateTimeRange checks HH:MM bounds with start strictly before end.
func ValidateTimeRange(start, end string) error {
	s, err := time.Parse("15:04", start)
	if err != nil {
		return apperr.E(apperr.InvalidInput, "start_time must be HH:MM")
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return apperr.E(apperr.InvalidInput, "end_time must be HH:MM")
	}
	if !s.Before(e) {
		return apperr.E(apperr.InvalidInput, "start_time must be before end_time")
	}
	return nil
}

// SameSpecialty compares labels ignoring case and surrounding space.
func SameSpecialty(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
