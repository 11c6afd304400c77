package schedules

import "github.com/wolfman30/medassist/internal/apperr"

var (
	// ErrScheduleNotFound is returned when a slot id does not resolve.
	ErrScheduleNotFound = apperr.E(apperr.NotFound, "schedule not found")

	// ErrScheduleUnavailable is returned when a slot is already bound.
	ErrScheduleUnavailable = apperr.E(apperr.Conflict, "this schedule is no longer available")

	// ErrScheduleInUse is returned when deleting a slot an active appointment still holds.
	ErrScheduleInUse = apperr.E(apperr.Conflict, "schedule is referenced by an active appointment")
)
