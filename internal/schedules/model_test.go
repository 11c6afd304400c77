package schedules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/medassist/internal/apperr"
)

func TestCreateScheduleRequestBuild(t *testing.T) {
	req := CreateScheduleRequest{
		DoctorName:      " Dr. Mona ",
		Specialty:       "قلب",
		AppointmentDate: "2030-05-01",
		StartTime:       "09:00",
		EndTime:         "09:30",
		Location:        "Cairo Clinic",
	}
	s, err := req.Build()
	require.NoError(t, err)
	assert.Equal(t, "Dr. Mona", s.DoctorName)
	assert.True(t, s.Available)
	assert.Equal(t, "2030-05-01", s.AppointmentDate.Format(DateLayout))
}

func TestCreateScheduleRequestValidation(t *testing.T) {
	base := CreateScheduleRequest{
		DoctorName: "Dr. A", Specialty: "عيون", AppointmentDate: "2030-05-01",
		StartTime: "10:00", EndTime: "11:00", Location: "Giza",
	}
	tests := []struct {
		name   string
		mutate func(*CreateScheduleRequest)
	}{
		{"missing doctor", func(r *CreateScheduleRequest) { r.DoctorName = "" }},
		{"bad date", func(r *CreateScheduleRequest) { r.AppointmentDate = "01/05/2030" }},
		{"bad start", func(r *CreateScheduleRequest) { r.StartTime = "9am" }},
		{"end before start", func(r *CreateScheduleRequest) { r.EndTime = "09:00" }},
		{"equal bounds", func(r *CreateScheduleRequest) { r.EndTime = "10:00" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := req.Build()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.InvalidInput))
		})
	}
}

func TestUpdateScheduleRequestApply(t *testing.T) {
	s := &Schedule{DoctorName: "Dr. A", Specialty: "عيون", StartTime: "10:00", EndTime: "11:00", Location: "Giza", Available: false}
	loc := "Alexandria"
	end := "12:00"
	require.NoError(t, (&UpdateScheduleRequest{Location: &loc, EndTime: &end}).Apply(s))
	assert.Equal(t, "Alexandria", s.Location)
	assert.Equal(t, "12:00", s.EndTime)
	assert.False(t, s.Available, "update must not touch availability")

	bad := "09:00"
	err := (&UpdateScheduleRequest{EndTime: &bad}).Apply(s)
	assert.True(t, errors.Is(err, apperr.InvalidInput))
}

func TestSameSpecialty(t *testing.T) {
	assert.True(t, SameSpecialty("Cardiology", " cardiology "))
	assert.False(t, SameSpecialty("Cardiology", "Dermatology"))
}
