package schedules

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/medassist/internal/http/respond"
)

// Handler serves schedule endpoints.
type Handler struct {
	svc  *Service
	resp *respond.Responder
}

// NewHandler creates a schedules handler.
func NewHandler(svc *Service, resp *respond.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// AdminRoutes mounts the CRUD endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// Available handles GET /schedules/available/{specialty}.
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.AvailableBySpecialty(r.Context(), chi.URLParam(r, "specialty"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, listResponse(items))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, listResponse(items))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sched, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "schedule": sched})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	sched, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, map[string]any{"success": true, "schedule": sched})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateScheduleRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	sched, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "schedule": sched})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "schedule deleted"})
}

func listResponse(items []*Schedule) map[string]any {
	if items == nil {
		items = []*Schedule{}
	}
	return map[string]any{"success": true, "count": len(items), "schedules": items}
}
