package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/ctxutil"
)

// contextKey is a custom type to avoid context key collisions.
type contextKey string

// requestIDKey is the context key for storing request ID.
const requestIDKey contextKey = "requestId"

// headerXRequestID is the HTTP header name for request ID.
const headerXRequestID = "X-Request-ID"

// RequestID returns a middleware that generates or passes through a request ID.
// If the incoming request has an X-Request-ID header of at most 64 characters
// drawn from letters, digits, '-', '_' and '.', it uses that value (passthrough).
// Otherwise, it generates a new UUID v7 (36 characters).
// The request ID is injected into the request context (readable through both
// GetRequestID and ctxutil.GetRequestID) and set in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerXRequestID)

		valid := requestID != "" && len(requestID) <= 64
		for _, c := range requestID {
			if !(c == '-' || c == '_' || c == '.' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
				valid = false
				break
			}
		}
		if !valid {
			requestID = generateRequestID()
		}

		// Set response header
		w.Header().Set(headerXRequestID, requestID)

		// Inject into context
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = ctxutil.SetRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if no request ID is present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// generateRequestID creates a new UUID v7 request ID (36 characters),
// falling back to a random UUID v4 if a v7 cannot be generated.
func generateRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
