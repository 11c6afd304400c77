package identity

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/http/respond"
)

// Handler serves /auth and /admin/users.
type Handler struct {
	svc  *Service
	resp *respond.Responder
}

func NewHandler(svc *Service, resp *respond.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// AdminRoutes mounts the user administration endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.ListUsers)
	r.Get("/{id}", h.GetUser)
	r.Put("/{id}/role", h.UpdateRole)
	r.Delete("/{id}", h.DeleteUser)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	res, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "user registered successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "login successful",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		h.resp.Error(w, r, apperr.E(apperr.Unauthenticated, "authentication required"))
		return
	}
	user, err := h.svc.Me(r.Context(), p)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	if users == nil {
		users = []*User{}
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "count": len(users), "users": users})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := respond.Decode(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	actor, _ := PrincipalFrom(r.Context())
	user, err := h.svc.UpdateRole(r.Context(), actor, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "user role updated successfully", "user": user})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := PrincipalFrom(r.Context())
	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "user deleted successfully"})
}
