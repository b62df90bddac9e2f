// Package middleware provides HTTP middleware for the transport layer.
//
// This package contains the Chi router middleware for the broadcast
// endpoint: request logging, panic recovery, rate limiting, body size
// limiting, and request metrics. Inbound caller authentication is out of
// scope for this gateway (see spec Non-goals) so no auth/JWT/idempotency
// middleware lives here.
//
// # Middleware Ordering
//
// Applied in this order (outermost to innermost):
//
//  1. RequestID  - assigns a request ID (chi's own)
//  2. RealIP     - resolves the real client IP behind a proxy (chi's own)
//  3. Recoverer  - catches panics, returns RFC 7807 SYS-001
//  4. Logger     - structured request/response logging
//  5. Shutdown   - rejects new requests with 503 while draining (only when a
//     ShutdownCoordinator is configured)
//  6. BodyLimiter - rejects oversized request bodies
//  7. RateLimiter - per-caller rate limiting
//  8. Metrics    - Prometheus request counters/histograms (only when a
//     metrics recorder is configured)
//
// # Error Responses
//
// All middleware use RFC 7807 Problem Details via the contract package.
package middleware
