package appointments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/medassist/internal/http/respond"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/schedules"
)

// Handler serves /appointments.
type Handler struct {
	svc  *Service
	resp *respond.Responder
}

func NewHandler(svc *Service, resp *respond.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// AdminRoutes mounts the endpoints that require the admin role.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/{id}", h.Delete)
	r.Put("/{id}/status", h.UpdateStatus)
	r.Post("/assign", h.Assign)
	r.Get("/available-schedules/{specialty}", h.AvailableSchedules)
}

func principal(r *http.Request) *identity.Principal {
	if p, ok := identity.PrincipalFrom(r.Context()); ok {
		return &p
	}
	return nil
}

// Create handles POST /appointments. Authentication is optional.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	appt, err := h.svc.Create(r.Context(), req, principal(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"message":     "appointment created",
		"appointment": appt,
	})
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListForUser(r.Context(), principal(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, listResponse(items))
}

func (h *Handler) CancelOwn(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.CancelOwn(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "appointment cancelled",
		"appointment": appt,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, listResponse(items))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "appointment deleted"})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	change, err := h.svc.UpdateStatus(r.Context(), actor(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"appointment":     change.Appointment,
		"previous_status": change.PreviousStatus,
	})
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	appt, err := h.svc.Assign(r.Context(), actor(r), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "schedule assigned",
		"appointment": appt,
	})
}

func (h *Handler) AvailableSchedules(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.AvailableForSpecialty(r.Context(), chi.URLParam(r, "specialty"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	if items == nil {
		items = []*schedules.Schedule{}
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "count": len(items), "schedules": items})
}

func actor(r *http.Request) identity.Principal {
	p, _ := identity.PrincipalFrom(r.Context())
	return p
}

func listResponse(items []*Appointment) map[string]any {
	if items == nil {
		items = []*Appointment{}
	}
	return map[string]any{"success": true, "count": len(items), "appointments": items}
}
