package middleware

import (
	"net/http"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/app"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/contract"
)

// ShutdownCoordinator is the interface required by the Shutdown middleware.
// It is declared here, in the transport layer, so this package does not need
// to import internal/infra/resilience directly; resilience.ShutdownCoordinator
// satisfies it.
type ShutdownCoordinator interface {
	// IncrementActive increments the active request counter.
	// Returns false if shutdown has been initiated, in which case the
	// caller must reject the request.
	IncrementActive() bool

	// DecrementActive decrements the active request counter.
	DecrementActive()
}

// ShutdownRetryAfterSeconds is the Retry-After header value sent with 503
// responses while the gateway is draining in-flight broadcasts.
const ShutdownRetryAfterSeconds = "30"

// Shutdown returns a middleware that rejects new requests with 503 Service
// Unavailable once graceful shutdown has been initiated, while letting
// requests already in flight run to completion.
//
// Place this middleware early in the chain (after RequestID and Recoverer)
// so draining requests are rejected before they consume rate limit quota or
// reach the broadcast handler.
func Shutdown(coord ShutdownCoordinator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !coord.IncrementActive() {
				w.Header().Set("Retry-After", ShutdownRetryAfterSeconds)
				w.Header().Set("Connection", "close")
				contract.WriteProblemJSON(w, r, &app.AppError{
					Op:      "Shutdown",
					Code:    app.CodeServiceUnavailable,
					Message: "Server is shutting down. Please retry later.",
				})
				return
			}
			defer coord.DecrementActive()

			next.ServeHTTP(w, r)
		})
	}
}
