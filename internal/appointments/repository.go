package appointments

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines appointment storage.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	// List returns every appointment, newest first.
	List(ctx context.Context) ([]*Appointment, error)
	// ListForUser matches patient.user_id or the lowercased patient email.
	ListForUser(ctx context.Context, userID, email string) ([]*Appointment, error)
	// Update writes a only while the stored status still equals expect.
	// A mismatch returns ErrStaleAppointment.
	Update(ctx context.Context, a *Appointment, expect Status) error
	// Delete removes the row only while its status still equals expect.
	Delete(ctx context.Context, id string, expect Status) error
	// HasActiveAppointment reports whether a pending or confirmed
	// appointment references the schedule.
	HasActiveAppointment(ctx context.Context, scheduleID string) (bool, error)
}

// InMemoryRepository keeps appointments in a map guarded by a mutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment
	now   func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]*Appointment), now: time.Now}
}

func (r *InMemoryRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	copied := *a
	r.mu.Lock()
	r.items[a.ID] = &copied
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Appointment, error) {
	return r.filter(func(*Appointment) bool { return true }), nil
}

func (r *InMemoryRepository) ListForUser(ctx context.Context, userID, email string) ([]*Appointment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.filter(func(a *Appointment) bool {
		if userID != "" && a.Patient.UserID == userID {
			return true
		}
		return email != "" && strings.ToLower(a.Patient.Email) == email
	}), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, a *Appointment, expect Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if current.Status != expect {
		return ErrStaleAppointment
	}
	copied := *a
	r.items[a.ID] = &copied
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string, expect Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if current.Status != expect {
		return ErrStaleAppointment
	}
	delete(r.items, id)
	return nil
}

func (r *InMemoryRepository) HasActiveAppointment(ctx context.Context, scheduleID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if a.Schedule.ScheduleID == scheduleID && !a.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) filter(keep func(*Appointment) bool) []*Appointment {
	r.mu.RLock()
	out := make([]*Appointment, 0, len(r.items))
	for _, a := range r.items {
		if keep(a) {
			copied := *a
			out = append(out, &copied)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
