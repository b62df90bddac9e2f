// Package httpclient adapts a (partner, uid) pair into a single HTTP
// exchange, per partner configuration: body format, headers,
// authentication, per-call deadline, response field extraction, and
// breaker integration. It never returns a Go error to its caller -- every
// outcome, including transport failure, collapses into a
// broadcast.PartnerResponse, so the orchestrator never has to distinguish
// "partner failed" from "client failed".
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/broadcast"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/partner"
)

// Breaker is the subset of the circuit breaker registry the client needs.
// Kept as an interface so tests can substitute a fake without dragging in
// gobreaker or the sliding-window implementation.
type Breaker interface {
	Acquire(partnerID string) bool
	RecordSuccess(partnerID string, duration time.Duration)
	RecordFailure(partnerID string, duration time.Duration, cause error)
}

const circuitOpenMessage = "Service temporarily unavailable — circuit breaker open"

// Client dispatches start-charging calls to partners.
type Client struct {
	http    *http.Client
	breaker Breaker
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client (e.g. to install a
// custom Transport for connection pooling or TLS config).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client backed by breaker.
func New(breaker Breaker, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		breaker: breaker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs the start-charging exchange with p. ctx should already
// carry the caller's deadline (the orchestrator composes the global
// broadcast deadline with p's own timeout_ms before calling Send); Send
// additionally imposes p.TimeoutMillis as an upper bound on top of
// whatever ctx already carries.
func (c *Client) Send(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
	if !c.breaker.Acquire(p.ID) {
		c.metrics.record(p.ID, "circuit_breaker_open", 0)
		return broadcast.PartnerResponse{
			PartnerID:          p.ID,
			Success:            false,
			Status:             broadcast.StatusCircuitBreakerOpen,
			Message:            circuitOpenMessage,
			ResponseTimeMillis: 0,
			Timeout:            false,
			CircuitBreakerOpen: true,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.TimeoutMillis)*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp, err := c.dispatch(callCtx, p, uid)
	duration := time.Since(start)
	durationMillis := duration.Milliseconds()

	if err != nil {
		c.breaker.RecordFailure(p.ID, duration, err)
		c.metrics.record(p.ID, "breaker_failure", duration.Seconds())
		timeout := errors.Is(err, context.DeadlineExceeded) ||
			strings.Contains(strings.ToLower(err.Error()), "timeout")
		outcome := "error"
		if timeout {
			outcome = "timeout"
		}
		c.metrics.record(p.ID, outcome, duration.Seconds())
		return broadcast.PartnerResponse{
			PartnerID:          p.ID,
			Success:            false,
			Status:             broadcast.StatusError,
			Message:            err.Error(),
			ResponseTimeMillis: durationMillis,
			Timeout:            timeout,
		}
	}

	status := extractPath(resp.body, p.ResponseStatusPath)
	message := extractPath(resp.body, p.ResponseMessagePath)
	success := p.MatchesSuccess(status)

	c.breaker.RecordSuccess(p.ID, duration)
	c.metrics.record(p.ID, "breaker_success", duration.Seconds())
	c.metrics.record(p.ID, "success", duration.Seconds())

	return broadcast.PartnerResponse{
		PartnerID:          p.ID,
		Success:            success,
		Status:             status,
		Message:            message,
		ResponseTimeMillis: durationMillis,
		Timeout:            false,
	}
}

type transportResult struct {
	body map[string]any
}

// dispatch performs the actual wire exchange and returns a non-nil error
// for anything the specification classifies as a transport failure:
// timeout, network error, non-2xx status, or a body that does not parse
// as a JSON object. Per-field extraction failures (a path that does not
// resolve within an otherwise well-formed body) are a separate, narrower
// concern handled by extractPath and never surface here.
func (c *Client) dispatch(ctx context.Context, p partner.Partner, uid string) (*transportResult, error) {
	body, contentType, err := buildBody(p, uid)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = buildHeaders(p, contentType, c.logger)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &nonSuccessStatusError{statusCode: resp.StatusCode}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("unparseable response body: %w", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response body is not a JSON object")
	}

	return &transportResult{body: obj}, nil
}
