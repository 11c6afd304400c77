package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/medassist/internal/appointments"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/internal/phone"
	"github.com/wolfman30/medassist/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Dispatcher sends patient notifications in the background. Failures are
// logged and counted, never returned.
type Dispatcher struct {
	sms     SMSSender
	email   EmailSender
	metrics *metrics.Metrics
	logger  *logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

var (
	_ appointments.Notifier = (*Dispatcher)(nil)
	_ identity.Welcomer     = (*Dispatcher)(nil)
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(n *Dispatcher) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Dispatcher) { n.metrics = m }
}

// NewDispatcher wires the channel senders. A nil sender disables that channel.
func NewDispatcher(sms SMSSender, email EmailSender, logger *logging.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{sms: sms, email: email, logger: logger, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) AppointmentConfirmed(ctx context.Context, a appointments.Appointment) {
	var msg *EmailMessage
	if a.Patient.Email != "" {
		m := confirmationEmail(a)
		msg = &m
	}
	d.dispatch(ctx, "confirmed", a.Patient.Phone, confirmationSMS(a), msg)
}

func (d *Dispatcher) AppointmentCancelled(ctx context.Context, a appointments.Appointment, selfService bool) {
	var msg *EmailMessage
	if a.Patient.Email != "" {
		m := cancellationEmail(a, selfService)
		msg = &m
	}
	d.dispatch(ctx, "cancelled", a.Patient.Phone, cancellationSMS(a, selfService), msg)
}

func (d *Dispatcher) BookingRequested(ctx context.Context, a appointments.Appointment) {
	var msg *EmailMessage
	if a.Patient.Email != "" {
		m := bookingRequestEmail(a)
		msg = &m
	}
	d.dispatch(ctx, "booking_request", a.Patient.Phone, bookingRequestSMS(a), msg)
}

// Welcome emails a newly registered user.
func (d *Dispatcher) Welcome(ctx context.Context, name, email string) {
	if strings.TrimSpace(email) == "" {
		return
	}
	msg := welcomeEmail(name, email)
	d.dispatch(ctx, "welcome", "", "", &msg)
}

// Wait blocks until every in-flight send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, kind, to, smsBody string, email *EmailMessage) {
	ctx = context.WithoutCancel(ctx)
	if d.sms != nil && strings.TrimSpace(to) != "" && smsBody != "" {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			err := d.sms.SendSMS(ctx, to, smsBody)
			d.observe("sms", kind, err, "to", phone.Obscure(phone.Normalize(to)))
		}()
	}
	if d.email != nil && email != nil && email.To != "" {
		msg := *email
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			err := d.email.Send(ctx, msg)
			d.observe("email", kind, err, "subject", msg.Subject)
		}()
	}
}

func (d *Dispatcher) observe(channel, kind string, err error, attrs ...any) {
	status := "sent"
	if err != nil {
		status = "failed"
		d.logger.Warn("notification failed", append([]any{"channel", channel, "kind", kind, "error", err}, attrs...)...)
	} else {
		d.logger.Debug("notification sent", append([]any{"channel", channel, "kind", kind}, attrs...)...)
	}
	d.metrics.ObserveNotification(channel, kind, status)
}
