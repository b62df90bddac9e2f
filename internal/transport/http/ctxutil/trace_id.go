package ctxutil

import (
	"context"

	sharedctx "github.com/iruldev/eroaming-broadcast-gateway/internal/shared/context"
)

// EmptyTraceID is the all-zero trace ID used by tracing libraries to signal
// an invalid or not-yet-sampled trace.
const EmptyTraceID = sharedctx.EmptyTraceID

// GetTraceID retrieves the trace ID from the context.
// Returns an empty string if no trace ID is present.
func GetTraceID(ctx context.Context) string {
	return sharedctx.GetTraceID(ctx)
}

// SetTraceID returns a new context with the given trace ID.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return sharedctx.SetTraceID(ctx, traceID)
}

// EmptySpanID is the all-zero span ID used by tracing libraries to signal
// an invalid or not-yet-sampled span.
const EmptySpanID = sharedctx.EmptySpanID

// GetSpanID retrieves the span ID from the context.
// Returns an empty string if no span ID is present.
func GetSpanID(ctx context.Context) string {
	return sharedctx.GetSpanID(ctx)
}

// SetSpanID returns a new context with the given span ID.
func SetSpanID(ctx context.Context, spanID string) context.Context {
	return sharedctx.SetSpanID(ctx, spanID)
}
