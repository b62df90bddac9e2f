package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/broadcast"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/partner"
)

// GlobalDeadline is the fixed broadcast budget, independent of any single
// partner's timeout_ms.
const GlobalDeadline = 5 * time.Second

// Cache is the subset of the partner cache the orchestrator needs.
type Cache interface {
	ActivePartners() []partner.Partner
}

// Client is the subset of the partner HTTP client the orchestrator needs.
type Client interface {
	Send(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse
}

// Orchestrator fans a broadcast request out to all active partners.
type Orchestrator struct {
	cache    Cache
	client   Client
	pool     *pool
	poolSize int
	deadline time.Duration
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPoolSize overrides the bounded worker pool's concurrent-call limit.
// The pool itself is constructed once, after every Option has run, so an
// earlier default-sized pool is never built and discarded unclosed.
func WithPoolSize(n int) Option {
	return func(o *Orchestrator) { o.poolSize = n }
}

// WithDeadline overrides GlobalDeadline (tests use this to avoid a 5s run).
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.deadline = d
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator over cache and client.
func New(cache Cache, client Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:    cache,
		client:   client,
		deadline: GlobalDeadline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.pool = newPool(o.poolSize)
	return o
}

// Broadcast sends uid to every active partner and returns as soon as the
// first business success arrives, or once every partner has answered or
// the global deadline has passed without one.
func (o *Orchestrator) Broadcast(ctx context.Context, uid string) broadcast.Report {
	start := time.Now()

	partners := o.cache.ActivePartners()
	if len(partners) == 0 {
		return broadcast.Report{
			Success:         false,
			Message:         "No active partners available",
			TotalTimeMillis: elapsedMillis(start),
		}
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	completion := make(chan broadcast.PartnerResponse, len(partners))

	for _, p := range partners {
		p := p
		o.pool.submit(deadlineCtx, func() {
			o.sendOne(deadlineCtx, p, uid, completion)
		})
	}

	var firstSuccess atomic.Pointer[string]
	collected := make([]broadcast.PartnerResponse, 0, len(partners))

drain:
	for len(collected) < len(partners) {
		select {
		case resp := <-completion:
			collected = append(collected, resp)
			if resp.Success {
				id := resp.PartnerID
				if firstSuccess.CompareAndSwap(nil, &id) {
					break drain
				}
			}
		case <-deadlineCtx.Done():
			break drain
		}
	}

	// Cancels every still-in-flight send; their eventual results, if any,
	// arrive on completion after this function has already returned and
	// are never read, so they are not observed -- matching the
	// response-list determinism requirement.
	cancel()

	return buildReport(firstSuccess.Load(), collected, start)
}

// sendOne runs the HTTP client call and deposits its result into
// completion, recovering from any panic so a single misbehaving call
// cannot take down the rest of the fan-out; a recovered panic is reported
// as an internal-error response so the drain loop's count stays accurate.
func (o *Orchestrator) sendOne(ctx context.Context, p partner.Partner, uid string, completion chan<- broadcast.PartnerResponse) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("partner send panicked, reporting as internal error",
				slog.String("partner_id", p.ID), slog.Any("recover", r))
			select {
			case completion <- broadcast.PartnerResponse{
				PartnerID: p.ID,
				Success:   false,
				Status:    broadcast.StatusError,
				Message:   "internal error",
			}:
			case <-ctx.Done():
			}
		}
	}()

	resp := o.client.Send(ctx, p, uid)
	select {
	case completion <- resp:
	case <-ctx.Done():
	}
}

func buildReport(respondingPartner *string, collected []broadcast.PartnerResponse, start time.Time) broadcast.Report {
	total := elapsedMillis(start)

	if respondingPartner != nil {
		id := *respondingPartner
		return broadcast.Report{
			Success:           true,
			Message:           fmt.Sprintf("Charging started successfully with partner %s", id),
			RespondingPartner: &id,
			PartnerResponses:  collected,
			TotalTimeMillis:   total,
		}
	}

	counts := broadcast.CountResponses(collected)
	return broadcast.Report{
		Success: false,
		Message: fmt.Sprintf(
			"No partner accepted the charging request. %d partners responded (%d success, %d timeouts, %d errors)",
			counts.Responded, counts.Success, counts.Timeouts, counts.Errors,
		),
		PartnerResponses: collected,
		TotalTimeMillis:  total,
	}
}

func elapsedMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// Close terminates the Orchestrator's worker pool. Callers must not call
// Broadcast after Close. Intended for test teardown; the long-running
// daemon relies on process exit instead.
func (o *Orchestrator) Close() {
	o.pool.close()
}
