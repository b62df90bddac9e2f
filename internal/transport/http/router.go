// Package http provides HTTP transport layer components.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/shared/metrics"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/handler"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/middleware"
)

// RouterConfig collects the pieces NewRouter wires together.
type RouterConfig struct {
	Logger             *slog.Logger
	HealthHandler      http.Handler
	ReadyHandler       http.Handler
	BroadcastHandler   *handler.BroadcastHandler
	MaxRequestBytes    int64
	RateLimit          middleware.RateLimitConfig
	Metrics            metrics.HTTPMetrics
	ShutdownCoordinator middleware.ShutdownCoordinator
}

// NewRouter creates a new chi router with the provided handlers and logger.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Recoverer(cfg.Logger)) // RFC 7807 SYS-001 on panic, not a bare 500
	r.Use(middleware.RequestLogger(cfg.Logger)) // Structured JSON request logging
	if cfg.ShutdownCoordinator != nil {
		// Reject new requests with 503 before they consume body/rate-limit quota.
		r.Use(middleware.Shutdown(cfg.ShutdownCoordinator))
	}
	r.Use(middleware.BodyLimiter(cfg.MaxRequestBytes))
	r.Use(middleware.RateLimiter(cfg.RateLimit))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Health check endpoints
	r.Get("/health", cfg.HealthHandler.ServeHTTP)
	r.Get("/ready", cfg.ReadyHandler.ServeHTTP)

	r.Route("/v1/broadcast", func(r chi.Router) {
		r.Post("/{uid}", cfg.BroadcastHandler.StartCharging)
	})

	return r
}
