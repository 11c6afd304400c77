package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/http/respond"
	"github.com/wolfman30/medassist/internal/identity"
)

// TokenAuthenticator resolves a bearer token to a principal.
type TokenAuthenticator interface {
	Authenticate(token string) (identity.Principal, error)
}

// RoleChecker reports whether a user currently holds the admin role.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

var errMissingToken = apperr.E(apperr.Unauthenticated, "no token provided, authorization denied")

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Authenticate rejects requests without a valid bearer token and stores the
// principal on the request context.
func Authenticate(auth TokenAuthenticator, resp *respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				resp.Error(w, r, errMissingToken)
				return
			}
			p, err := auth.Authenticate(token)
			if err != nil {
				resp.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth attaches the principal when a valid token is sent and
// otherwise lets the request through anonymously.
func OptionalAuth(auth TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if p, err := auth.Authenticate(token); err == nil {
					r = r.WithContext(identity.WithPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after Authenticate. The role is read from the store
// on every request.
func RequireAdmin(roles RoleChecker, resp *respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := identity.PrincipalFrom(r.Context())
			if !ok {
				resp.Error(w, r, errMissingToken)
				return
			}
			admin, err := roles.IsAdmin(r.Context(), p.UserID)
			if err != nil && !errors.Is(err, apperr.NotFound) {
				resp.Error(w, r, err)
				return
			}
			if !admin {
				resp.Error(w, r, apperr.E(apperr.Forbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
