package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/archive"
	"github.com/wolfman30/medassist/internal/audit"
	"github.com/wolfman30/medassist/internal/events"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/internal/schedules"
	"github.com/wolfman30/medassist/internal/triage"
)

var testNow = time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []Appointment
	cancelled []Appointment
	selfFlags []bool
	requested []Appointment
}

func (n *recordingNotifier) AppointmentConfirmed(_ context.Context, a Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, a)
}

func (n *recordingNotifier) AppointmentCancelled(_ context.Context, a Appointment, selfService bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, a)
	n.selfFlags = append(n.selfFlags, selfService)
}

func (n *recordingNotifier) BookingRequested(_ context.Context, a Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, a)
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
	keys  []string
}

func (r *recordingEvents) Append(_ context.Context, aggregate string, evt events.CanonicalEvent) (events.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, evt.EventType())
	r.keys = append(r.keys, aggregate)
	return events.Envelope{EventType: evt.EventType(), Aggregate: aggregate}, nil
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []*archive.AppointmentRecord
}

func (a *recordingArchiver) ArchiveAppointment(_ context.Context, r *archive.AppointmentRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Record(_ context.Context, e audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

type stubUsers map[string]*identity.User

func (u stubUsers) GetByID(_ context.Context, id string) (*identity.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, identity.ErrUserNotFound
}

// failingRepo fails Create or Update on demand.
type failingRepo struct {
	*InMemoryRepository
	failCreate bool
	failUpdate bool
	failDelete bool
}

func (r *failingRepo) Create(ctx context.Context, a *Appointment) error {
	if r.failCreate {
		return errors.New("insert failed")
	}
	return r.InMemoryRepository.Create(ctx, a)
}

func (r *failingRepo) Update(ctx context.Context, a *Appointment, expect Status) error {
	if r.failUpdate {
		return errors.New("update failed")
	}
	return r.InMemoryRepository.Update(ctx, a, expect)
}

func (r *failingRepo) Delete(ctx context.Context, id string, expect Status) error {
	if r.failDelete {
		return errors.New("delete failed")
	}
	return r.InMemoryRepository.Delete(ctx, id, expect)
}

// staleReadRepo replays a copy saved by hold on the GetByID after arm, as if
// the caller had read the row just before a concurrent write committed.
type staleReadRepo struct {
	*InMemoryRepository
	mu    sync.Mutex
	saved *Appointment
	stale *Appointment
}

func (r *staleReadRepo) hold(t *testing.T, id string) {
	t.Helper()
	a, err := r.InMemoryRepository.GetByID(context.Background(), id)
	require.NoError(t, err)
	r.mu.Lock()
	r.saved = a
	r.mu.Unlock()
}

func (r *staleReadRepo) arm() {
	r.mu.Lock()
	r.stale, r.saved = r.saved, nil
	r.mu.Unlock()
}

func (r *staleReadRepo) GetByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	stale := r.stale
	r.stale = nil
	r.mu.Unlock()
	if stale != nil && stale.ID == id {
		copied := *stale
		return &copied, nil
	}
	return r.InMemoryRepository.GetByID(ctx, id)
}

type fixture struct {
	svc      *Service
	repo     *InMemoryRepository
	slots    *schedules.InMemoryRepository
	notifier *recordingNotifier
	events   *recordingEvents
	archiver *recordingArchiver
	audit    *recordingAudit
}

func newFixture(t *testing.T, repo Repository) *fixture {
	t.Helper()
	f := &fixture{
		repo:     NewInMemoryRepository(),
		slots:    schedules.NewInMemoryRepository(),
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
		archiver: &recordingArchiver{},
		audit:    &recordingAudit{},
	}
	if repo == nil {
		repo = f.repo
	}
	users := stubUsers{"user-1": {ID: "user-1", Email: "mona@example.com", Age: 29}}
	f.svc = NewService(repo, f.slots, nil,
		WithNotifier(f.notifier),
		WithUsers(users),
		WithEvents(f.events),
		WithArchiver(f.archiver),
		WithAudit(f.audit),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithClock(func() time.Time { return testNow }),
	)
	return f
}

func (f *fixture) slot(t *testing.T, specialty string, daysAhead int) *schedules.Schedule {
	t.Helper()
	s := &schedules.Schedule{
		DoctorName:      "Dr. Karim",
		Specialty:       specialty,
		AppointmentDate: testNow.AddDate(0, 0, daysAhead).Truncate(24 * time.Hour),
		StartTime:       "10:00",
		EndTime:         "10:30",
		Location:        "Cairo Clinic",
		Available:       true,
	}
	require.NoError(t, f.slots.Create(context.Background(), s))
	return s
}

// assertSlotConsistent checks that the slot is unavailable exactly when a
// live appointment holds it.
func (f *fixture) assertSlotConsistent(t *testing.T, scheduleID string) {
	t.Helper()
	held, err := f.svc.HasActiveAppointment(context.Background(), scheduleID)
	require.NoError(t, err)
	assert.Equal(t, !held, f.available(t, scheduleID), "slot availability disagrees with its holders")
}

func (f *fixture) available(t *testing.T, id string) bool {
	t.Helper()
	s, err := f.slots.GetByID(context.Background(), id)
	require.NoError(t, err)
	return s.Available
}

func patientRequest() CreateRequest {
	return CreateRequest{Name: "Mona", Age: 29, Phone: "01012345678"}
}

func explicitRequest(specialty string) CreateRequest {
	req := patientRequest()
	req.DoctorName = "Dr. Sara"
	req.Specialty = specialty
	req.AppointmentDate = "2030-03-20"
	req.StartTime = "11:00"
	req.EndTime = "11:30"
	req.Location = "Giza"
	return req
}

func owner() *identity.Principal {
	return &identity.Principal{UserID: "user-1", Email: "mona@example.com"}
}

var admin = identity.Principal{UserID: "admin-1", Email: "admin@example.com"}

func TestCreateWithScheduleConfirmsAndClaims(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	slot := f.slot(t, "Cardiology", 3)

	req := patientRequest()
	req.ScheduleID = slot.ID
	appt, err := f.svc.Create(ctx, req, owner())
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, slot.ID, appt.Schedule.ScheduleID)
	assert.Equal(t, "Dr. Karim", appt.Schedule.DoctorName)
	assert.Equal(t, "user-1", appt.Patient.UserID)
	assert.Equal(t, "mona@example.com", appt.Patient.Email, "email backfilled from the account")
	assert.False(t, f.available(t, slot.ID))
	assert.Len(t, f.notifier.confirmed, 1)
	assert.Empty(t, f.notifier.requested)
	assert.Equal(t, []string{events.AppointmentCreated}, f.events.types)
	assert.Equal(t, "appointment:"+appt.ID, f.events.keys[0])
}

func TestCreateWithoutScheduleIsPending(t *testing.T) {
	f := newFixture(t, nil)
	appt, err := f.svc.Create(context.Background(), explicitRequest("Dermatology"), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Empty(t, appt.Schedule.ScheduleID)
	assert.Empty(t, appt.Patient.UserID)
	assert.Empty(t, f.notifier.confirmed)
	assert.Len(t, f.notifier.requested, 1)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{Name: "Mona"}, nil)
	assert.ErrorIs(t, err, apperr.InvalidInput)

	req := explicitRequest("Dermatology")
	req.Location = ""
	_, err = f.svc.Create(ctx, req, nil)
	assert.ErrorIs(t, err, apperr.InvalidInput)

	req = patientRequest()
	req.ScheduleID = "missing"
	_, err = f.svc.Create(ctx, req, nil)
	assert.ErrorIs(t, err, schedules.ErrScheduleNotFound)
}

func TestCreateOnTakenSlotConflicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	slot := f.slot(t, "Cardiology", 3)

	req := patientRequest()
	req.ScheduleID = slot.ID
	_, err := f.svc.Create(ctx, req, nil)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, req, nil)
	assert.ErrorIs(t, err, schedules.ErrScheduleUnavailable)
	assert.ErrorIs(t, err, apperr.Conflict)
	assert.Len(t, f.notifier.confirmed, 1)
}

func TestCreateReleasesSlotWhenPersistFails(t *testing.T) {
	repo := &failingRepo{InMemoryRepository: NewInMemoryRepository(), failCreate: true}
	f := newFixture(t, repo)
	slot := f.slot(t, "Cardiology", 3)

	req := patientRequest()
	req.ScheduleID = slot.ID
	_, err := f.svc.Create(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, f.available(t, slot.ID))
	assert.Empty(t, f.notifier.confirmed)
}

func TestConcurrentBookingsBindSlotOnce(t *testing.T) {
	f := newFixture(t, nil)
	slot := f.slot(t, "Cardiology", 3)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := patientRequest()
			req.ScheduleID = slot.ID
			_, err := f.svc.Create(context.Background(), req, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.Conflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	active, err := f.repo.HasActiveAppointment(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("binds matching slot", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, err := f.svc.Create(ctx, explicitRequest("cardiology "), nil)
		require.NoError(t, err)
		slot := f.slot(t, "Cardiology", 5)

		got, err := f.svc.Assign(ctx, admin, AssignRequest{AppointmentID: appt.ID, ScheduleID: slot.ID})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, got.Status)
		assert.Equal(t, slot.ID, got.Schedule.ScheduleID)
		assert.Equal(t, "Dr. Karim", got.Schedule.DoctorName)
		assert.False(t, f.available(t, slot.ID))
		assert.Len(t, f.notifier.confirmed, 1)
		require.Len(t, f.audit.events, 1)
		assert.Equal(t, audit.EventAppointmentAssigned, f.audit.events[0].EventType)
	})

	t.Run("specialty mismatch", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, err := f.svc.Create(ctx, explicitRequest("Dermatology"), nil)
		require.NoError(t, err)
		slot := f.slot(t, "Cardiology", 5)

		_, err = f.svc.Assign(ctx, admin, AssignRequest{AppointmentID: appt.ID, ScheduleID: slot.ID})
		assert.ErrorIs(t, err, ErrSpecialtyMismatch)
		assert.True(t, f.available(t, slot.ID))
	})

	t.Run("only pending", func(t *testing.T) {
		f := newFixture(t, nil)
		slot := f.slot(t, "Cardiology", 5)
		req := patientRequest()
		req.ScheduleID = slot.ID
		appt, err := f.svc.Create(ctx, req, nil)
		require.NoError(t, err)
		other := f.slot(t, "Cardiology", 6)

		_, err = f.svc.Assign(ctx, admin, AssignRequest{AppointmentID: appt.ID, ScheduleID: other.ID})
		assert.ErrorIs(t, err, ErrNotPending)
	})

	t.Run("slot taken", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, err := f.svc.Create(ctx, explicitRequest("Cardiology"), nil)
		require.NoError(t, err)
		slot := f.slot(t, "Cardiology", 5)
		require.NoError(t, f.slots.Claim(ctx, slot.ID))

		_, err = f.svc.Assign(ctx, admin, AssignRequest{AppointmentID: appt.ID, ScheduleID: slot.ID})
		assert.ErrorIs(t, err, schedules.ErrScheduleUnavailable)
	})

	t.Run("missing ids", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Assign(ctx, admin, AssignRequest{})
		assert.ErrorIs(t, err, apperr.InvalidInput)

		_, err = f.svc.Assign(ctx, admin, AssignRequest{AppointmentID: "nope", ScheduleID: "nope"})
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})

	t.Run("persist failure releases", func(t *testing.T) {
		repo := &failingRepo{InMemoryRepository: NewInMemoryRepository()}
		f := newFixture(t, repo)
		appt, err := f.svc.Create(ctx, explicitRequest("Cardiology"), nil)
		require.NoError(t, err)
		slot := f.slot(t, "Cardiology", 5)

		repo.failUpdate = true
		_, err = f.svc.Assign(ctx, admin, AssignRequest{AppointmentID: appt.ID, ScheduleID: slot.ID})
		require.Error(t, err)
		assert.True(t, f.available(t, slot.ID))
	})
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()

	book := func(t *testing.T, f *fixture) (*Appointment, *schedules.Schedule) {
		slot := f.slot(t, "Cardiology", 3)
		req := patientRequest()
		req.ScheduleID = slot.ID
		appt, err := f.svc.Create(ctx, req, owner())
		require.NoError(t, err)
		return appt, slot
	}

	t.Run("cancel releases slot and notifies once", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, slot := book(t, f)

		change, err := f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, change.PreviousStatus)
		assert.Equal(t, StatusCancelled, change.Appointment.Status)
		assert.True(t, f.available(t, slot.ID))
		require.Len(t, f.notifier.cancelled, 1)
		assert.False(t, f.notifier.selfFlags[0])

		// re-cancel is a no-op write without a second notification
		change, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, change.PreviousStatus)
		assert.Len(t, f.notifier.cancelled, 1)
	})

	t.Run("completed keeps slot taken", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, slot := book(t, f)

		_, err := f.svc.UpdateStatus(ctx, admin, appt.ID, "completed")
		require.NoError(t, err)
		assert.False(t, f.available(t, slot.ID))

		_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.False(t, f.available(t, slot.ID))
	})

	t.Run("terminal cannot reopen", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, slot := book(t, f)
		_, err := f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "confirmed")
		assert.ErrorIs(t, err, apperr.Conflict)
		assert.True(t, f.available(t, slot.ID))
	})

	t.Run("pending to confirmed notifies", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, err := f.svc.Create(ctx, explicitRequest("Cardiology"), nil)
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "confirmed")
		require.NoError(t, err)
		assert.Len(t, f.notifier.confirmed, 1)

		_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "confirmed")
		require.NoError(t, err)
		assert.Len(t, f.notifier.confirmed, 1)
	})

	t.Run("pending to completed rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, err := f.svc.Create(ctx, explicitRequest("Cardiology"), nil)
		require.NoError(t, err)
		_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "completed")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("invalid status value", func(t *testing.T) {
		f := newFixture(t, nil)
		appt, _ := book(t, f)
		_, err := f.svc.UpdateStatus(ctx, admin, appt.ID, "archived")
		assert.ErrorIs(t, err, apperr.InvalidInput)
	})

	t.Run("failed write leaves slot held", func(t *testing.T) {
		repo := &failingRepo{InMemoryRepository: NewInMemoryRepository()}
		f := newFixture(t, repo)
		appt, slot := book(t, f)

		repo.failUpdate = true
		_, err := f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
		require.Error(t, err)
		assert.False(t, f.available(t, slot.ID))
		assert.Empty(t, f.notifier.cancelled)
	})
}

func TestCancelOwn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	slot := f.slot(t, "Cardiology", 3)
	req := patientRequest()
	req.ScheduleID = slot.ID
	appt, err := f.svc.Create(ctx, req, owner())
	require.NoError(t, err)

	_, err = f.svc.CancelOwn(ctx, nil, appt.ID)
	assert.ErrorIs(t, err, apperr.Unauthenticated)

	_, err = f.svc.CancelOwn(ctx, &identity.Principal{UserID: "someone-else"}, appt.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.CancelOwn(ctx, owner(), "missing")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	got, err := f.svc.CancelOwn(ctx, owner(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.True(t, f.available(t, slot.ID))

	// a second self-cancel still notifies but leaves the slot alone
	other := patientRequest()
	other.ScheduleID = slot.ID
	_, err = f.svc.Create(ctx, other, nil)
	require.NoError(t, err)

	_, err = f.svc.CancelOwn(ctx, owner(), appt.ID)
	require.NoError(t, err)
	assert.False(t, f.available(t, slot.ID))
	assert.Len(t, f.notifier.cancelled, 2)
	assert.Equal(t, []bool{true, true}, f.notifier.selfFlags)
}

func TestCancelOwnCompletedConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	slot := f.slot(t, "Cardiology", 3)
	req := patientRequest()
	req.ScheduleID = slot.ID
	appt, err := f.svc.Create(ctx, req, owner())
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "completed")
	require.NoError(t, err)

	_, err = f.svc.CancelOwn(ctx, owner(), appt.ID)
	assert.ErrorIs(t, err, apperr.Conflict)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("releases active slot and archives", func(t *testing.T) {
		f := newFixture(t, nil)
		slot := f.slot(t, "Cardiology", 3)
		req := patientRequest()
		req.ScheduleID = slot.ID
		req.Notes = "call me on 01012345678"
		appt, err := f.svc.Create(ctx, req, owner())
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, admin, appt.ID))
		assert.True(t, f.available(t, slot.ID))
		_, err = f.repo.GetByID(ctx, appt.ID)
		assert.ErrorIs(t, err, ErrAppointmentNotFound)

		require.Len(t, f.notifier.cancelled, 1)
		assert.Equal(t, appt.ID, f.notifier.cancelled[0].ID)
		require.Len(t, f.archiver.records, 1)
		record := f.archiver.records[0]
		assert.Equal(t, archive.HashPhone("01012345678"), record.PhoneHash)
		assert.True(t, record.HadAccount)
		assert.Equal(t, "admin-1", record.DeletedBy)
		assert.Contains(t, f.events.types, events.AppointmentDeleted)
	})

	t.Run("completed releases slot", func(t *testing.T) {
		f := newFixture(t, nil)
		slot := f.slot(t, "Cardiology", 3)
		req := patientRequest()
		req.ScheduleID = slot.ID
		appt, err := f.svc.Create(ctx, req, nil)
		require.NoError(t, err)
		_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "completed")
		require.NoError(t, err)
		assert.False(t, f.available(t, slot.ID))

		require.NoError(t, f.svc.Delete(ctx, admin, appt.ID))
		assert.True(t, f.available(t, slot.ID))
		f.assertSlotConsistent(t, slot.ID)
	})

	t.Run("cancelled leaves rebooked slot alone", func(t *testing.T) {
		f := newFixture(t, nil)
		slot := f.slot(t, "Cardiology", 3)
		req := patientRequest()
		req.ScheduleID = slot.ID
		first, err := f.svc.Create(ctx, req, nil)
		require.NoError(t, err)
		_, err = f.svc.UpdateStatus(ctx, admin, first.ID, "cancelled")
		require.NoError(t, err)
		_, err = f.svc.Create(ctx, req, nil)
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, admin, first.ID))
		assert.False(t, f.available(t, slot.ID))
		f.assertSlotConsistent(t, slot.ID)
	})

	t.Run("orphan schedule does not block", func(t *testing.T) {
		f := newFixture(t, nil)
		slot := f.slot(t, "Cardiology", 3)
		req := patientRequest()
		req.ScheduleID = slot.ID
		appt, err := f.svc.Create(ctx, req, nil)
		require.NoError(t, err)
		require.NoError(t, f.slots.Delete(ctx, slot.ID))

		require.NoError(t, f.svc.Delete(ctx, admin, appt.ID))
	})

	t.Run("failed delete keeps slot", func(t *testing.T) {
		repo := &failingRepo{InMemoryRepository: NewInMemoryRepository()}
		f := newFixture(t, repo)
		slot := f.slot(t, "Cardiology", 3)
		req := patientRequest()
		req.ScheduleID = slot.ID
		appt, err := f.svc.Create(ctx, req, nil)
		require.NoError(t, err)

		repo.failDelete = true
		require.Error(t, f.svc.Delete(ctx, admin, appt.ID))
		assert.False(t, f.available(t, slot.ID))
		assert.Empty(t, f.archiver.records)
	})
}

func TestAvailableForSpecialtyIsCaseInsensitiveAndFuture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.slot(t, "Cardiology", 2)
	f.slot(t, "cardiology", 4)
	f.slot(t, "Cardiology", -2)
	taken := f.slot(t, "CARDIOLOGY", 5)
	require.NoError(t, f.slots.Claim(ctx, taken.ID))
	f.slot(t, "Dermatology", 2)

	got, err := f.svc.AvailableForSpecialty(ctx, "CardioLogy")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].AppointmentDate.Before(got[1].AppointmentDate))

	_, err = f.svc.AvailableForSpecialty(ctx, " ")
	assert.ErrorIs(t, err, apperr.InvalidInput)
}

func TestListForUserMatchesAccountOrEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.Create(ctx, explicitRequest("Cardiology"), owner())
	require.NoError(t, err)
	byEmail := explicitRequest("Dermatology")
	byEmail.Email = "MONA@example.com"
	_, err = f.svc.Create(ctx, byEmail, nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, explicitRequest("Dentistry"), nil)
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(ctx, owner())
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = f.svc.ListForUser(ctx, nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestRequestBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.RequestBooking(ctx, nil, BookingRequest{Name: "Mona", Phone: "010"})
	assert.ErrorIs(t, err, apperr.Unauthenticated)

	_, err = f.svc.RequestBooking(ctx, owner(), BookingRequest{Name: "Mona"})
	assert.ErrorIs(t, err, apperr.InvalidInput)

	long := make([]rune, 600)
	for i := range long {
		long[i] = 'ص'
	}
	appt, err := f.svc.RequestBooking(ctx, owner(), BookingRequest{Name: "Mona", Phone: "01012345678", Message: string(long)})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, triage.DefaultSpecialty, appt.Schedule.Specialty)
	assert.Equal(t, Unassigned, appt.Schedule.DoctorName)
	assert.Equal(t, Unassigned, appt.Schedule.Location)
	assert.Equal(t, time.Date(2030, 3, 17, 0, 0, 0, 0, time.UTC), appt.Schedule.AppointmentDate)
	assert.Equal(t, "09:00", appt.Schedule.StartTime)
	assert.Equal(t, "10:00", appt.Schedule.EndTime)
	assert.Len(t, []rune(appt.Notes), 500)
	assert.Equal(t, 29, appt.Patient.Age)
	assert.Equal(t, "mona@example.com", appt.Patient.Email)
	assert.Len(t, f.notifier.requested, 1)
}

func TestServiceIsReferenceChecker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	slot := f.slot(t, "Cardiology", 3)

	svc := schedules.NewService(f.slots, nil).WithReferenceChecker(f.svc)
	req := patientRequest()
	req.ScheduleID = slot.ID
	appt, err := f.svc.Create(ctx, req, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, slot.ID), schedules.ErrScheduleInUse)

	_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
	require.NoError(t, err)
	assert.NoError(t, svc.Delete(ctx, slot.ID))
}

func TestCancelLosingRaceKeepsSlotFree(t *testing.T) {
	ctx := context.Background()
	repo := &staleReadRepo{InMemoryRepository: NewInMemoryRepository()}
	f := newFixture(t, repo)
	slot := f.slot(t, "Cardiology", 3)
	req := patientRequest()
	req.ScheduleID = slot.ID
	appt, err := f.svc.Create(ctx, req, owner())
	require.NoError(t, err)

	repo.hold(t, appt.ID)
	_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
	require.NoError(t, err)
	require.True(t, f.available(t, slot.ID))

	repo.arm()
	_, err = f.svc.CancelOwn(ctx, owner(), appt.ID)
	assert.ErrorIs(t, err, ErrStaleAppointment)

	got, err := repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.True(t, f.available(t, slot.ID))
	f.assertSlotConsistent(t, slot.ID)
}

func TestDeleteLosingRaceToCancelKeepsRebookedSlot(t *testing.T) {
	ctx := context.Background()
	repo := &staleReadRepo{InMemoryRepository: NewInMemoryRepository()}
	f := newFixture(t, repo)
	slot := f.slot(t, "Cardiology", 3)
	req := patientRequest()
	req.ScheduleID = slot.ID
	first, err := f.svc.Create(ctx, req, owner())
	require.NoError(t, err)

	repo.hold(t, first.ID)
	_, err = f.svc.CancelOwn(ctx, owner(), first.ID)
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, req, nil)
	require.NoError(t, err)

	repo.arm()
	err = f.svc.Delete(ctx, admin, first.ID)
	assert.ErrorIs(t, err, ErrStaleAppointment)

	assert.False(t, f.available(t, slot.ID))
	still, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, still.Status)
	f.assertSlotConsistent(t, slot.ID)
	assert.Empty(t, f.archiver.records)
}

func TestConcurrentCancelsLeaveSlotConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for round := 0; round < 20; round++ {
		slot := f.slot(t, "Cardiology", 3)
		req := patientRequest()
		req.ScheduleID = slot.ID
		appt, err := f.svc.Create(ctx, req, owner())
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				switch i % 3 {
				case 0:
					_, _ = f.svc.CancelOwn(ctx, owner(), appt.ID)
				case 1:
					_, _ = f.svc.UpdateStatus(ctx, admin, appt.ID, "cancelled")
				default:
					_ = f.svc.Delete(ctx, admin, appt.ID)
				}
			}(i)
		}
		wg.Wait()

		assert.True(t, f.available(t, slot.ID), "round %d", round)
		f.assertSlotConsistent(t, slot.ID)
	}
}
