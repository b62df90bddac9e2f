package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockShutdownCoordinator is a minimal stand-in implementing only the
// methods the Shutdown middleware needs from ShutdownCoordinator.
type mockShutdownCoordinator struct {
	shuttingDown bool
	activeCount  int64
}

func (m *mockShutdownCoordinator) IncrementActive() bool {
	if m.shuttingDown {
		return false
	}
	m.activeCount++
	return true
}

func (m *mockShutdownCoordinator) DecrementActive() {
	m.activeCount--
}

func TestShutdownMiddleware(t *testing.T) {
	tests := []struct {
		name             string
		shuttingDown     bool
		expectedStatus   int
		expectedActive   int64
		expectNextCalled bool
		expectRetryAfter bool
	}{
		{
			name:             "allows request when not shutting down",
			shuttingDown:     false,
			expectedStatus:   http.StatusOK,
			expectedActive:   0,
			expectNextCalled: true,
			expectRetryAfter: false,
		},
		{
			name:             "rejects request when shutting down",
			shuttingDown:     true,
			expectedStatus:   http.StatusServiceUnavailable,
			expectedActive:   0,
			expectNextCalled: false,
			expectRetryAfter: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &mockShutdownCoordinator{shuttingDown: tt.shuttingDown}
			nextCalled := false

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
			})

			handler := Shutdown(coord)(next)

			req := httptest.NewRequest(http.MethodGet, "/v1/broadcast/abc", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedActive, coord.activeCount)
			assert.Equal(t, tt.expectNextCalled, nextCalled)

			if tt.expectRetryAfter {
				assert.NotEmpty(t, rec.Header().Get("Retry-After"))
				assert.Equal(t, "close", rec.Header().Get("Connection"))
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestShutdownMiddleware_ResponseBody(t *testing.T) {
	coord := &mockShutdownCoordinator{shuttingDown: true}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next should not be called")
	})

	handler := Shutdown(coord)(next)

	req := httptest.NewRequest(http.MethodPost, "/v1/broadcast/partner-1", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, `"status":503`)
	require.Contains(t, body, `"title":"Service Unavailable"`)
	require.Contains(t, body, `shutting down`)
	require.Contains(t, body, `"instance":"/v1/broadcast/partner-1"`)
	require.Contains(t, body, `"code":"SERVICE_UNAVAILABLE"`)
}

func TestShutdownMiddleware_TracksActiveCount(t *testing.T) {
	coord := &mockShutdownCoordinator{shuttingDown: false}

	var activeCountDuringRequest int64

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		activeCountDuringRequest = coord.activeCount
		w.WriteHeader(http.StatusOK)
	})

	handler := Shutdown(coord)(next)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, int64(1), activeCountDuringRequest)
	assert.Equal(t, int64(0), coord.activeCount)
}
