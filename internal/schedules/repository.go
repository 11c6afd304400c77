package schedules

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines slot storage. Claim and Release are the only writes
// that touch availability.
type Repository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context) ([]*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id string) error
	ListAvailable(ctx context.Context, filter AvailabilityFilter) ([]*Schedule, error)

	// Claim flips an available slot to unavailable in one step. It returns
	// ErrScheduleUnavailable when another caller got there first.
	Claim(ctx context.Context, id string) error
	// Release marks a slot available again.
	Release(ctx context.Context, id string) error
}

// InMemoryRepository keeps slots in a map guarded by a mutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule
	now       func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		schedules: make(map[string]*Schedule),
		now:       time.Now,
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	copied := *s
	r.mu.Lock()
	r.schedules[s.ID] = &copied
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		copied := *s
		out = append(out, &copied)
	}
	sortByDate(out)
	return out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.schedules[s.ID]
	if !ok {
		return ErrScheduleNotFound
	}
	updated := *s
	updated.Available = existing.Available
	updated.CreatedAt = existing.CreatedAt
	r.schedules[s.ID] = &updated
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}

func (r *InMemoryRepository) ListAvailable(ctx context.Context, filter AvailabilityFilter) ([]*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Schedule
	for _, s := range r.schedules {
		if !s.Available {
			continue
		}
		if filter.CaseInsensitive {
			if !strings.EqualFold(s.Specialty, filter.Specialty) {
				continue
			}
		} else if s.Specialty != filter.Specialty {
			continue
		}
		if !filter.From.IsZero() && s.AppointmentDate.Before(filter.From) {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	sortByDate(out)
	return out, nil
}

func (r *InMemoryRepository) Claim(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	if !s.Available {
		return ErrScheduleUnavailable
	}
	s.Available = false
	return nil
}

func (r *InMemoryRepository) Release(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	s.Available = true
	return nil
}

func sortByDate(items []*Schedule) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].AppointmentDate.Equal(items[j].AppointmentDate) {
			return items[i].StartTime < items[j].StartTime
		}
		return items[i].AppointmentDate.Before(items[j].AppointmentDate)
	})
}
