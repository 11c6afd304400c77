package identity

import "github.com/wolfman30/medassist/internal/apperr"

var (
	ErrUserNotFound       = apperr.E(apperr.NotFound, "user not found")
	ErrEmailTaken         = apperr.E(apperr.Conflict, "email address already in use")
	ErrInvalidCredentials = apperr.E(apperr.Unauthenticated, "invalid credentials")
	ErrInvalidToken       = apperr.E(apperr.Unauthenticated, "invalid token, authentication failed")
	ErrTokenExpired       = apperr.E(apperr.Unauthenticated, "token expired, please login again")
	ErrInvalidRole        = apperr.E(apperr.InvalidInput, "invalid role specified")
	ErrMainAdmin          = apperr.E(apperr.Forbidden, "cannot delete the main admin user")
	ErrDeleteSelf         = apperr.E(apperr.Conflict, "cannot delete your own account")
)
