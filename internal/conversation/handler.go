package conversation

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medassist/internal/appointments"
	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/http/respond"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/triage"
)

// BookingRequester turns a chat booking request into a pending appointment.
type BookingRequester interface {
	RequestBooking(ctx context.Context, actor *identity.Principal, req appointments.BookingRequest) (*appointments.Appointment, error)
}

// Handler serves /chat.
type Handler struct {
	svc      *Service
	bookings BookingRequester
	resp     *respond.Responder
}

func NewHandler(svc *Service, bookings BookingRequester, resp *respond.Responder) *Handler {
	return &Handler{svc: svc, bookings: bookings, resp: resp}
}

// Routes mounts the endpoints open to guests. Send reads the principal when present.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/init", h.Init)
	r.Post("/send", h.Send)
	r.Get("/history/{sessionId}", h.History)
	r.Post("/classify", h.Classify)
}

// AuthRoutes mounts the endpoints that require a logged-in user.
func (h *Handler) AuthRoutes(r chi.Router) {
	r.Get("/medical-history", h.MedicalHistory)
	r.Get("/sessions", h.Sessions)
	r.Post("/booking-sms", h.BookingSMS)
}

func principalEmail(r *http.Request) string {
	if p, ok := identity.PrincipalFrom(r.Context()); ok {
		return p.Email
	}
	return ""
}

func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	sessionID, email := h.svc.Init(principalEmail(r))
	h.resp.JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": sessionID,
		"user_email": email,
	})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	reply, err := h.svc.Send(r.Context(), req, principalEmail(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	body := map[string]any{"success": true, "message": reply}
	if reply.Redirect {
		body["redirect"] = true
		body["redirect_to"] = reply.RedirectTo
	}
	h.resp.JSON(w, http.StatusOK, body)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.History(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "messages": entries})
}

type classifyRequest struct {
	Messages []string `json:"messages"`
	Text     string   `json:"text"`
}

// Classify suggests a specialty for the given complaint text.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	texts := append([]string{req.Text}, req.Messages...)
	if strings.TrimSpace(strings.Join(texts, "")) == "" {
		h.resp.Error(w, r, apperr.E(apperr.InvalidInput, "text or messages is required"))
		return
	}
	c := triage.ClassifySpecialty(texts...)
	h.resp.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"specialty": c.Specialty,
		"matches":   c.Matches,
	})
}

func (h *Handler) MedicalHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.MedicalHistory(r.Context(), principalEmail(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "sessions": sessions})
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.Sessions(r.Context(), principalEmail(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "count": len(sessions), "sessions": sessions})
}

// BookingSMS records a booking request raised from the chat and notifies the patient.
func (h *Handler) BookingSMS(w http.ResponseWriter, r *http.Request) {
	var req appointments.BookingRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	var actor *identity.Principal
	if p, ok := identity.PrincipalFrom(r.Context()); ok {
		actor = &p
	}
	appt, err := h.bookings.RequestBooking(r.Context(), actor, req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"message":     "booking request received",
		"appointment": appt,
	})
}
