package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medassist/internal/appointments"
	"github.com/wolfman30/medassist/internal/observability/metrics"
)

type recordingSMS struct {
	mu     sync.Mutex
	to     []string
	bodies []string
	err    error
}

func (r *recordingSMS) SendSMS(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.to = append(r.to, to)
	r.bodies = append(r.bodies, body)
	return r.err
}

type recordingEmail struct {
	mu   sync.Mutex
	msgs []EmailMessage
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func sampleAppointment(email string) appointments.Appointment {
	return appointments.Appointment{
		ID:      "appt-1",
		Patient: appointments.Patient{Name: "منى", Age: 29, Phone: "01012345678", Email: email},
		Schedule: appointments.Slot{
			DoctorName:      "كريم",
			Specialty:       "قلب",
			AppointmentDate: time.Date(2030, 3, 12, 0, 0, 0, 0, time.UTC),
			StartTime:       "10:00",
			EndTime:         "10:30",
			Location:        "القاهرة",
		},
		Status: appointments.StatusConfirmed,
		Notes:  "ألم في الصدر",
	}
}

func TestDispatcherConfirmedSendsBothChannels(t *testing.T) {
	sms, email := &recordingSMS{}, &recordingEmail{}
	d := NewDispatcher(sms, email, nil)

	d.AppointmentConfirmed(context.Background(), sampleAppointment("mona@example.com"))
	d.Wait()

	require.Len(t, sms.bodies, 1)
	assert.Contains(t, sms.bodies[0], "تم تأكيد موعدك: قلب")
	assert.Contains(t, sms.bodies[0], "2030-03-12 10:00")
	require.Len(t, email.msgs, 1)
	assert.Equal(t, subjectConfirmed, email.msgs[0].Subject)
	assert.Equal(t, "mona@example.com", email.msgs[0].To)
}

func TestDispatcherSkipsEmailWithoutAddress(t *testing.T) {
	sms, email := &recordingSMS{}, &recordingEmail{}
	d := NewDispatcher(sms, email, nil)

	d.AppointmentCancelled(context.Background(), sampleAppointment(""), true)
	d.Wait()

	require.Len(t, sms.bodies, 1)
	assert.Contains(t, sms.bodies[0], "بناءً على طلبك")
	assert.Empty(t, email.msgs)
}

func TestDispatcherSurvivesCancelledRequestContext(t *testing.T) {
	sms := &recordingSMS{}
	d := NewDispatcher(sms, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.BookingRequested(ctx, sampleAppointment(""))
	d.Wait()

	require.Len(t, sms.bodies, 1)
	assert.Contains(t, sms.bodies[0], "طلب حجز:")
	assert.Contains(t, sms.bodies[0], "(29)")
}

func TestDispatcherCountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sms := &recordingSMS{err: errors.New("provider down")}
	email := &recordingEmail{}
	d := NewDispatcher(sms, email, nil, WithMetrics(m), WithTimeout(time.Second))

	d.AppointmentConfirmed(context.Background(), sampleAppointment("mona@example.com"))
	d.Wait()

	expected := `
# HELP medassist_notifications_total Patient notifications by channel, kind and status
# TYPE medassist_notifications_total counter
medassist_notifications_total{channel="email",kind="confirmed",status="sent"} 1
medassist_notifications_total{channel="sms",kind="confirmed",status="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "medassist_notifications_total"))
}

func TestDispatcherWelcome(t *testing.T) {
	email := &recordingEmail{}
	d := NewDispatcher(nil, email, nil)

	d.Welcome(context.Background(), "منى", "")
	d.Welcome(context.Background(), "منى", "mona@example.com")
	d.Wait()

	require.Len(t, email.msgs, 1)
	assert.Equal(t, subjectWelcome, email.msgs[0].Subject)
	assert.Contains(t, email.msgs[0].HTML, `dir="rtl"`)
}

func TestBookingRequestSMSWithoutAge(t *testing.T) {
	a := sampleAppointment("")
	a.Patient.Age = 0
	assert.Contains(t, bookingRequestSMS(a), "منى (-)")
}
