package location

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/http/respond"
)

// Handler serves /locations.
type Handler struct {
	svc  *Service
	resp *respond.Responder
}

func NewHandler(svc *Service, resp *respond.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/hospitals", h.facilities(AmenityHospital, "hospitals"))
	r.Get("/pharmacies", h.facilities(AmenityPharmacy, "pharmacies"))
}

// facilities reads lat/lng when both are given and geocodes query otherwise.
func (h *Handler) facilities(amenity Amenity, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var at Coordinates
		if q.Get("lat") != "" && q.Get("lng") != "" {
			lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
			lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
			if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
				h.resp.Error(w, r, apperr.E(apperr.InvalidInput, "lat and lng must be valid coordinates"))
				return
			}
			at = Coordinates{Lat: lat, Lng: lng}
		} else {
			at = h.svc.Locate(r.Context(), q.Get("query"))
		}

		h.resp.JSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"userLocation": at,
			key:            h.svc.Nearby(r.Context(), at, amenity),
		})
	}
}
