package schedules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/pkg/logging"
)

// ReferenceChecker reports whether a non-terminal appointment holds a slot.
type ReferenceChecker interface {
	HasActiveAppointment(ctx context.Context, scheduleID string) (bool, error)
}

// Service wraps the repository with admin validation rules.
type Service struct {
	repo   Repository
	refs   ReferenceChecker
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a schedule service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("schedules: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithReferenceChecker enables the delete guard for referenced slots.
func (s *Service) WithReferenceChecker(refs ReferenceChecker) *Service {
	s.refs = refs
	return s
}

func (s *Service) Create(ctx context.Context, req CreateScheduleRequest) (*Schedule, error) {
	sched, err := req.Build()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, err
	}
	s.logger.Info("schedule created", "schedule_id", sched.ID, "specialty", sched.Specialty, "date", sched.AppointmentDate.Format(DateLayout))
	return sched, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Schedule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Schedule, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*Schedule, error) {
	sched, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(sched); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Delete removes a slot unless an active appointment still references it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.refs != nil {
		inUse, err := s.refs.HasActiveAppointment(ctx, id)
		if err != nil {
			return fmt.Errorf("schedules: reference check: %w", err)
		}
		if inUse {
			return ErrScheduleInUse
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

// AvailableBySpecialty lists open future slots using exact specialty
// equality. This is the public browse path.
func (s *Service) AvailableBySpecialty(ctx context.Context, specialty string) ([]*Schedule, error) {
	specialty = strings.TrimSpace(specialty)
	if specialty == "" {
		return nil, apperr.E(apperr.InvalidInput, "specialty is required")
	}
	return s.repo.ListAvailable(ctx, AvailabilityFilter{
		Specialty: specialty,
		From:      s.now().UTC(),
	})
}
