// Package breaker implements a count-based sliding-window circuit breaker,
// one instance per partner id, lazily created and swept for inactivity.
//
// gobreaker (used elsewhere in this module for simpler consecutive-failure
// protection) evaluates readiness to trip from cumulative counters cleared
// on a fixed interval; it has no notion of a fixed-size sliding window of
// the last N calls. The registry's breaker contract is specifically a
// last-N-calls window, so the evaluation here is hand-rolled against a
// small ring buffer rather than bent out of gobreaker.
package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State mirrors the three states a single partner's breaker can be in.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Breaker contract, fixed by the specification (not configurable per
// partner): a 10-call window, evaluated once at least 5 calls have landed
// in it, tripping on a 50% failure rate or 50% slow-call rate where "slow"
// means at or above 2s. An open breaker stays open for 10s, then allows up
// to 3 half-open probes whose combined outcome collapses the window to
// CLOSED (all probes healthy) or back to OPEN (any probe failed or was slow).
const (
	WindowSize                = 10
	MinCallsBeforeEvaluation  = 5
	FailureRateThreshold      = 0.5
	SlowCallRateThreshold     = 0.5
	SlowCallDurationThreshold = 2 * time.Second
	OpenStateDuration         = 10 * time.Second
	HalfOpenMaxProbes         = 3

	EvictionSweepInterval = time.Hour
	EvictionIdleThreshold = 24 * time.Hour
)

type callOutcome struct {
	failed bool
	slow   bool
}

type entry struct {
	mu sync.Mutex

	partnerID string
	logger    *slog.Logger

	state    State
	window   [WindowSize]callOutcome
	filled   int
	pos      int
	openedAt time.Time

	halfOpenInFlight int
	halfOpenResults  []bool

	lastAccess int64 // unix nanos, read/written via atomic-style mutex-protected access
}

func newEntry(partnerID string, logger *slog.Logger) *entry {
	return &entry{partnerID: partnerID, logger: logger, state: StateClosed}
}

// acquire returns whether a call may proceed, transitioning OPEN to
// HALF_OPEN once the open duration has elapsed and bounding concurrent
// half-open probes to HalfOpenMaxProbes.
func (e *entry) acquire(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = now.UnixNano()

	if e.state == StateOpen && now.Sub(e.openedAt) >= OpenStateDuration {
		e.toHalfOpen(now)
	}

	switch e.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if e.halfOpenInFlight >= HalfOpenMaxProbes {
			return false
		}
		e.halfOpenInFlight++
		return true
	default:
		return true
	}
}

// record registers the outcome of a call that was previously granted a
// permit by acquire. duration >= SlowCallDurationThreshold counts as a
// slow call regardless of success.
func (e *entry) record(success bool, duration time.Duration, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = now.UnixNano()
	slow := duration >= SlowCallDurationThreshold

	switch e.state {
	case StateHalfOpen:
		e.halfOpenInFlight--
		e.halfOpenResults = append(e.halfOpenResults, success && !slow)
		if len(e.halfOpenResults) >= HalfOpenMaxProbes {
			healthy := true
			for _, ok := range e.halfOpenResults {
				if !ok {
					healthy = false
					break
				}
			}
			if healthy {
				e.toClosed(now)
			} else {
				e.toOpen(now)
			}
		}
	case StateOpen:
		// A result arriving for a call whose permit predates a concurrent
		// open transition; nothing to evaluate against.
	default:
		e.window[e.pos] = callOutcome{failed: !success, slow: slow}
		e.pos = (e.pos + 1) % WindowSize
		if e.filled < WindowSize {
			e.filled++
		}
		if e.filled >= MinCallsBeforeEvaluation {
			failureRate, slowRate := e.rates()
			if failureRate >= FailureRateThreshold || slowRate >= SlowCallRateThreshold {
				e.toOpen(now)
			}
		}
	}
}

func (e *entry) rates() (failureRate, slowRate float64) {
	var failed, slow int
	for i := 0; i < e.filled; i++ {
		if e.window[i].failed {
			failed++
		}
		if e.window[i].slow {
			slow++
		}
	}
	return float64(failed) / float64(e.filled), float64(slow) / float64(e.filled)
}

func (e *entry) toOpen(now time.Time) {
	prev := e.state
	e.state = StateOpen
	e.openedAt = now
	e.halfOpenInFlight = 0
	e.halfOpenResults = nil
	e.logTransition(prev, StateOpen)
}

func (e *entry) toHalfOpen(now time.Time) {
	prev := e.state
	e.state = StateHalfOpen
	e.halfOpenInFlight = 0
	e.halfOpenResults = nil
	e.logTransition(prev, StateHalfOpen)
}

func (e *entry) toClosed(now time.Time) {
	prev := e.state
	e.state = StateClosed
	e.filled = 0
	e.pos = 0
	e.halfOpenResults = nil
	e.logTransition(prev, StateClosed)
}

func (e *entry) logTransition(from, to State) {
	if from == to || e.logger == nil {
		return
	}
	e.logger.Info("circuit breaker state changed",
		slog.String("partner_id", e.partnerID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

func (e *entry) currentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *entry) idleSince(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(time.Unix(0, e.lastAccess))
}

// Registry owns one breaker per partner id, created lazily and atomically
// on first acquire, and evicted by a periodic sweep once idle.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	logger   *slog.Logger
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry creates an empty Registry. Callers that want the eviction
// sweep running should call Run in a goroutine.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

func (r *Registry) entryFor(partnerID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[partnerID]
	if !ok {
		e = newEntry(partnerID, r.logger)
		r.entries[partnerID] = e
	}
	return e
}

// Acquire returns true if a call to partnerID may proceed under its
// breaker's current state, false if it must be rejected without any wire
// I/O or bookkeeping update.
func (r *Registry) Acquire(partnerID string) bool {
	return r.entryFor(partnerID).acquire(r.now())
}

// RecordSuccess registers a successful call of the given duration.
func (r *Registry) RecordSuccess(partnerID string, duration time.Duration) {
	r.entryFor(partnerID).record(true, duration, r.now())
}

// RecordFailure registers a failed call of the given duration. cause is
// logged but does not affect the sliding-window evaluation, which treats
// all recorded failures identically regardless of cause.
func (r *Registry) RecordFailure(partnerID string, duration time.Duration, cause error) {
	r.entryFor(partnerID).record(false, duration, r.now())
	if cause != nil {
		r.logger.Debug("circuit breaker recorded failure",
			slog.String("partner_id", partnerID), slog.Any("cause", cause))
	}
}

// State returns the current state of partnerID's breaker, StateClosed if
// no breaker has been created for it yet.
func (r *Registry) State(partnerID string) State {
	r.mu.Lock()
	e, ok := r.entries[partnerID]
	r.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return e.currentState()
}

// Run blocks, sweeping evictable breakers every EvictionSweepInterval
// until ctx is cancelled. Intended to be launched in its own goroutine.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(EvictionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// Stop terminates a running Run loop. Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Registry) sweep() {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.idleSince(now) >= EvictionIdleThreshold {
			delete(r.entries, id)
			r.logger.Debug("circuit breaker evicted", slog.String("partner_id", id))
		}
	}
}
