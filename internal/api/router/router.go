package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medassist/internal/appointments"
	"github.com/wolfman30/medassist/internal/conversation"
	httpmiddleware "github.com/wolfman30/medassist/internal/http/middleware"
	"github.com/wolfman30/medassist/internal/http/respond"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/location"
	"github.com/wolfman30/medassist/internal/schedules"
	"github.com/wolfman30/medassist/internal/webchat"
	"github.com/wolfman30/medassist/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger    *logging.Logger
	Responder *respond.Responder
	Auth      httpmiddleware.TokenAuthenticator
	Roles     httpmiddleware.RoleChecker

	IdentityHandler     *identity.Handler
	ScheduleHandler     *schedules.Handler
	AppointmentHandler  *appointments.Handler
	ConversationHandler *conversation.Handler
	WebChatHandler      *webchat.Handler
	LocationHandler     *location.Handler

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// RateLimiter guards the credential endpoints when set.
	RateLimiter *httpmiddleware.RateLimiter
	// HealthCheck reports dependency health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	resp := cfg.Responder
	if resp == nil {
		resp = respond.New(cfg.Logger, false)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpmiddleware.Correlate)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	authenticated := httpmiddleware.Authenticate(cfg.Auth, resp)
	optional := httpmiddleware.OptionalAuth(cfg.Auth)
	admin := httpmiddleware.RequireAdmin(cfg.Roles, resp)

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if h := cfg.IdentityHandler; h != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.RateLimiter != nil {
					r.Use(httpmiddleware.RateLimit(cfg.RateLimiter, resp))
				}
				r.Post("/signup", h.Signup)
				r.Post("/login", h.Login)
			})
			r.With(authenticated).Get("/me", h.Me)
		})
		r.Route("/admin/users", func(r chi.Router) {
			r.Use(authenticated, admin)
			h.AdminRoutes(r)
		})
	}

	if h := cfg.ScheduleHandler; h != nil {
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/available/{specialty}", h.Available)
			r.Group(func(r chi.Router) {
				r.Use(authenticated, admin)
				h.AdminRoutes(r)
			})
		})
	}

	if h := cfg.AppointmentHandler; h != nil {
		r.Route("/appointments", func(r chi.Router) {
			r.With(optional).Post("/", h.Create)
			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Get("/my-appointments", h.Mine)
				r.Post("/{id}/cancel", h.CancelOwn)
				r.Group(func(r chi.Router) {
					r.Use(admin)
					h.AdminRoutes(r)
				})
			})
		})
	}

	r.Route("/chat", func(r chi.Router) {
		if h := cfg.ConversationHandler; h != nil {
			r.Group(func(r chi.Router) {
				r.Use(optional)
				h.Routes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				h.AuthRoutes(r)
			})
		}
		if cfg.WebChatHandler != nil {
			r.With(optional).Get("/ws", cfg.WebChatHandler.HandleWebSocket)
		}
	})

	if cfg.LocationHandler != nil {
		r.Route("/locations", cfg.LocationHandler.Routes)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.Message(w, http.StatusNotFound, "route not found")
	})
	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		respond.JSON(w, code, map[string]string{"status": status})
	}
}
