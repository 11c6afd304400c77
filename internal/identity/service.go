package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/audit"
	"github.com/wolfman30/medassist/internal/phone"
	"github.com/wolfman30/medassist/pkg/logging"
)

// Welcomer sends the best-effort welcome message after signup.
type Welcomer interface {
	Welcome(ctx context.Context, name, email string)
}

// Service implements signup, login and user administration.
type Service struct {
	repo       Repository
	tokens     *TokenManager
	welcomer   Welcomer
	audit      audit.Recorder
	adminEmail string
	logger     *logging.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithWelcomer sets the signup welcome sender.
func WithWelcomer(w Welcomer) Option {
	return func(s *Service) { s.welcomer = w }
}

// WithAudit records admin mutations.
func WithAudit(rec audit.Recorder) Option {
	return func(s *Service) { s.audit = rec }
}

// WithMainAdmin marks the seeded admin account that cannot be deleted.
func WithMainAdmin(email string) Option {
	return func(s *Service) { s.adminEmail = NormalizeEmail(email) }
}

func NewService(repo Repository, tokens *TokenManager, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("identity: repository required")
	}
	if tokens == nil {
		panic("identity: token manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, tokens: tokens, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a user and returns an access token.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Name:         req.Name,
		Age:          req.Age,
		Email:        req.Email,
		Phone:        phone.Normalize(req.Phone),
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("identity: issue token: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	if s.welcomer != nil {
		s.welcomer.Welcome(ctx, user.Name, user.Email)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and returns an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.E(apperr.InvalidInput, "email and password are required")
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	ok, err := CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("login rejected", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("identity: issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate turns a bearer token into a Principal.
func (s *Service) Authenticate(token string) (Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.UserID, Email: NormalizeEmail(claims.Email)}, nil
}

// Me returns the current user.
func (s *Service) Me(ctx context.Context, p Principal) (*User, error) {
	if p.UserID == "" {
		return nil, apperr.E(apperr.Unauthenticated, "authentication required")
	}
	return s.repo.GetByID(ctx, p.UserID)
}

// IsAdmin looks the role up in the store so demotions apply immediately.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Role == RoleAdmin, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}

// UpdateRole changes a user's role.
func (s *Service) UpdateRole(ctx context.Context, actor Principal, id string, role Role) (*User, error) {
	role = Role(strings.ToLower(strings.TrimSpace(string(role))))
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.Role
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	user.Role = role
	s.record(ctx, audit.Event{
		EventType:     audit.EventUserRoleUpdated,
		ActorID:       actor.UserID,
		TargetID:      id,
		ChangedFields: []string{"role"},
		Details:       audit.Details(map[string]Role{"previous": previous, "role": role}),
	})
	s.logger.Info("user role updated", "user_id", id, "role", role, "actor_id", actor.UserID)
	return user, nil
}

// Delete removes a user. The main admin and the caller's own account are protected.
func (s *Service) Delete(ctx context.Context, actor Principal, id string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.adminEmail != "" && user.Email == s.adminEmail {
		return ErrMainAdmin
	}
	if actor.UserID == id {
		return ErrDeleteSelf
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.Event{
		EventType: audit.EventUserDeleted,
		ActorID:   actor.UserID,
		TargetID:  id,
		Details:   audit.Details(map[string]string{"email": user.Email}),
	})
	s.logger.Info("user deleted", "user_id", id, "actor_id", actor.UserID)
	return nil
}

// EnsureAdmin creates the seeded admin account or resets its role and
// password to the configured values.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != RoleAdmin {
			if err := s.repo.UpdateRole(ctx, existing.ID, RoleAdmin); err != nil {
				return err
			}
		}
		if ok, _ := CheckPassword(existing.PasswordHash, password); !ok {
			if err := s.repo.UpdatePassword(ctx, existing.ID, hash); err != nil {
				return err
			}
			s.logger.Info("admin password reset", "user_id", existing.ID)
		}
		return nil
	case errors.Is(err, ErrUserNotFound):
	default:
		return err
	}

	admin := &User{
		Name:         "Admin",
		Age:          30,
		Email:        email,
		Phone:        phone.Normalize("01000000000"),
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("admin user created", "user_id", admin.ID)
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("audit record failed", "error", err, "event_type", event.EventType)
	}
}
