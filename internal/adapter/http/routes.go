package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/clickbridge/internal/middleware"
)

// RouteConfig carries the per-route guards.
type RouteConfig struct {
	AdminToken     string
	WebhookBodyMax int64
	Limiter        *middleware.RateLimiter // nil disables rate limiting
}

// MountRoutes registers all routes on the given chi router. The webhook
// receiver is the only route on "/"; every other path is 404 and every
// other method on "/" is 405, both with JSON bodies.
func MountRoutes(r chi.Router, h *Handlers, cfg RouteConfig) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", h.Health)

	// Browser-facing OAuth flow
	r.Group(func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Get("/auth/start", h.AuthStart)
		r.Get("/auth/callback", h.AuthCallback)
	})

	// Webhook receiver
	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Handler)
		}
		r.Use(middleware.MaxBody(cfg.WebhookBodyMax))
		r.Use(middleware.Recover)
		r.Post("/", h.ReceiveWebhook)
	})

	// Operator lifecycle triggers
	r.Route("/lifecycle", func(r chi.Router) {
		r.Use(middleware.AdminToken(cfg.AdminToken))
		r.Post("/sync", h.Sync)
		r.Post("/drain", h.Drain)
		r.Get("/status", h.Status)
	})
}
