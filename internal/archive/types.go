package archive

import "time"

// RecordVersion is written into every archived record.
const RecordVersion = "1.0"

// AppointmentRecord is the de-identified copy of a deleted appointment.
type AppointmentRecord struct {
	Version         string    `json:"version"`
	AppointmentID   string    `json:"appointment_id"`
	Status          string    `json:"status"`
	Specialty       string    `json:"specialty"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentDate time.Time `json:"appointment_date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Location        string    `json:"location"`
	ScheduleID      string    `json:"schedule_id,omitempty"`
	PatientAge      int       `json:"patient_age"`
	PhoneHash       string    `json:"phone_hash"`
	HadAccount      bool      `json:"had_account"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	DeletedBy       string    `json:"deleted_by"`
	DeletedAt       time.Time `json:"deleted_at"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	AppointmentID string `json:"appointment_id"`
	S3Key         string `json:"s3_key"`
	Status        string `json:"status"`
	Specialty     string `json:"specialty"`
	DeletedAt     string `json:"deleted_at"`
}
