// Package api provides the HTTP API for the watchdog service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ragpilot/ragpilot/internal/api/handler"
	"github.com/ragpilot/ragpilot/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version       string
	BuildTime     string
	Logger        zerolog.Logger
	HealthService handler.HealthService
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime)
	healthHandler := handler.NewHealthHandler(cfg.HealthService)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	probeRateLimit := middleware.RateLimitByIP(middleware.ProbeRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
		})

		r.Route("/health", func(r chi.Router) {
			r.With(standardRateLimit).Get("/status", healthHandler.SystemStatus)
			r.With(standardRateLimit).Get("/cycles", healthHandler.CycleMetrics)
			r.With(standardRateLimit).Get("/services/{service}/history", healthHandler.ServiceHistory)
			// Triggers real probes against every dependency, so the limit
			// is much tighter than for the read-only endpoints.
			r.With(probeRateLimit).Post("/check", healthHandler.RunChecks)
		})
	})

	return r
}
