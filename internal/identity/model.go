// Package identity owns users, credentials and bearer tokens.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/medassist/internal/apperr"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

const minPasswordLength = 6

// User is a registered account. PasswordHash never leaves the service.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (r *SignupRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r SignupRequest) validate() error {
	if r.Name == "" || r.Age <= 0 || r.Email == "" || r.Phone == "" || r.Password == "" {
		return apperr.E(apperr.InvalidInput, "all fields are required")
	}
	if !strings.Contains(r.Email, "@") {
		return apperr.E(apperr.InvalidInput, "please enter a valid email address")
	}
	if len(r.Password) < minPasswordLength {
		return apperr.E(apperr.InvalidInput, "password must be at least 6 characters")
	}
	return nil
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateRoleRequest is the body of PUT /admin/users/{id}/role.
type UpdateRoleRequest struct {
	Role Role `json:"role"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
}

type principalKey struct{}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}
