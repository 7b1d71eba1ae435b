// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/snapbuy/snapbuy/config"
	"github.com/snapbuy/snapbuy/pkg/api/handlers"
	"github.com/snapbuy/snapbuy/pkg/api/middleware"
	"github.com/snapbuy/snapbuy/pkg/logger"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/snapbuy/snapbuy/docs/swagger" // Import generated docs
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Run handles purchase run endpoints
	Run *handlers.RunHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// WebSocket streams trace events to clients
	WebSocket *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Run != nil {
			r.Route("/runs", func(r chi.Router) {
				r.Post("/", handlers.Run.SubmitRun)
				r.Post("/preview", handlers.Run.PreviewRun)
				r.Get("/", handlers.Run.ListRuns)
				r.Get("/{id}", handlers.Run.GetRun)
			})
			r.Get("/stats", handlers.Run.Stats)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	// Live trace stream
	if handlers.WebSocket != nil {
		r.Handle("/ws/events", handlers.WebSocket)
	}

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
