// Package respond writes JSON bodies and maps domain errors onto HTTP
// responses for the API handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/pkg/logging"
)

// ErrorBody is the envelope returned for every failed request.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Responder carries the logger and whether raw errors may be shown.
type Responder struct {
	logger  *logging.Logger
	verbose bool
}

// New builds a Responder. verbose exposes unclassified error text and should
// only be set in development.
func New(logger *logging.Logger, verbose bool) *Responder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{logger: logger, verbose: verbose}
}

// JSON writes payload with the given status.
func (rs *Responder) JSON(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, payload)
}

// Error maps err onto a status and message. Server errors are logged with
// the request id.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
	JSON(w, status, ErrorBody{Success: false, Message: apperr.PublicMessage(err, rs.verbose)})
}

// Message writes an error envelope with an explicit status.
func (rs *Responder) Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Success: false, Message: message})
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Decode reads a JSON body into dst and rejects malformed input.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "invalid request body", err)
	}
	return nil
}
