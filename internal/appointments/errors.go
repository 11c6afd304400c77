package appointments

import "github.com/wolfman30/medassist/internal/apperr"

var (
	ErrAppointmentNotFound = apperr.E(apperr.NotFound, "appointment not found")
	ErrNotPending          = apperr.E(apperr.Conflict, "only pending appointments can be assigned")
	ErrSpecialtyMismatch   = apperr.E(apperr.Conflict, "specialty mismatch between appointment and schedule")
	ErrInvalidTransition   = apperr.E(apperr.Conflict, "status transition not allowed")
	ErrStaleAppointment    = apperr.E(apperr.Conflict, "appointment was changed by another request")
	ErrNotOwner            = apperr.E(apperr.Forbidden, "you can only cancel your own appointments")
	ErrAuthRequired        = apperr.E(apperr.Unauthenticated, "authentication required")
)
