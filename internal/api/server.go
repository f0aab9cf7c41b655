package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/kadrohq/kadro-server/internal/api/handler"
	"github.com/kadrohq/kadro-server/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "X-User-ID", "X-User-Name"},
		ExposedHeaders:   []string{"X-Process-Time", "Retry-After"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Stats aggregation (read-only, no auth — mirrors the public site)
		r.Get("/stats/players", h.GetPlayerStats)
		r.Get("/stats/last-updated", h.GetStatsLastUpdated)

		// Notification emission (authenticated)
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.APIToken, cfg.AdminToken))

			r.Post("/notifications/events", h.PostEvent)
			r.Get("/notifications/events/{eventID}", h.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/notifications/admin-message", h.PostAdminMessage)
			})
		})
	})

	return r
}
