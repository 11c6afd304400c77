package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("schedule not found")

func TestErrorMatchesKindAndCause(t *testing.T) {
	err := fmt.Errorf("service: %w", Wrap(NotFound, "schedule not found", errSentinel))

	assert.True(t, errors.Is(err, NotFound))
	assert.False(t, errors.Is(err, Conflict))
	assert.True(t, errors.Is(err, errSentinel))
	assert.Equal(t, NotFound, KindOf(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		E(InvalidInput, "bad"):           http.StatusBadRequest,
		E(NotFound, "missing"):           http.StatusNotFound,
		E(Conflict, "taken"):             http.StatusConflict,
		E(Forbidden, "not yours"):        http.StatusForbidden,
		E(Unauthenticated, "login"):      http.StatusUnauthorized,
		errors.New("connection refused"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "this schedule is no longer available",
		PublicMessage(E(Conflict, "this schedule is no longer available"), false))

	raw := errors.New("pq: relation does not exist")
	assert.Equal(t, "internal server error", PublicMessage(raw, false))
	assert.Equal(t, raw.Error(), PublicMessage(raw, true))
}
