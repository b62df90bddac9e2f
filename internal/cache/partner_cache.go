// Package cache provides the Partner Cache: an O(1) snapshot of the active
// partner set and O(1) lookup by id, isolating the orchestrator from the
// backing repository.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/partner"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/infra/resilience"
)

// Capacity and TTL defaults from the specification.
const (
	DefaultCapacity = 100
	DefaultTTL      = 30 * time.Minute
)

// PartnerCache is a bounded, TTL-expiring, cache-through view over a
// partner.Repository. Reads never see a partial mutation: refresh() swaps
// in an entirely new backing store, and single-entry writes go through the
// backing store's own internal locking.
type PartnerCache struct {
	repo     partner.Repository
	retrier  resilience.Retrier
	logger   *slog.Logger
	capacity int
	ttl      time.Duration

	store atomic.Pointer[lru.LRU[string, partner.Partner]]

	// writeMu serializes create/update/disable/refresh so writers never
	// race each other (concurrent readers are unaffected).
	writeMu sync.Mutex
}

// Option configures a PartnerCache.
type Option func(*PartnerCache)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(c *PartnerCache) { c.capacity = n }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *PartnerCache) { c.ttl = ttl }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *PartnerCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetrier overrides the retrier used for repository reads.
func WithRetrier(r resilience.Retrier) Option {
	return func(c *PartnerCache) {
		if r != nil {
			c.retrier = r
		}
	}
}

// New creates a PartnerCache and preloads it with the repository's active
// partners. A preload failure is logged; the cache remains empty rather
// than returning an error, matching the "remains with whatever was
// previously loaded (empty at first boot)" failure semantics.
func New(ctx context.Context, repo partner.Repository, opts ...Option) *PartnerCache {
	c := &PartnerCache{
		repo:     repo,
		logger:   slog.Default(),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		retrier:  resilience.NewRetrier("partner-cache", resilience.DefaultRetryConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store.Store(lru.NewLRU[string, partner.Partner](c.capacity, nil, c.ttl))

	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("partner cache: preload failed, starting empty", slog.Any("error", err))
	}
	return c
}

// ActivePartners returns a point-in-time, ID-sorted copy of the active
// partner set. The returned slice is safe for the caller to mutate.
func (c *PartnerCache) ActivePartners() []partner.Partner {
	store := c.store.Load()
	values := store.Values()
	out := make([]partner.Partner, len(values))
	copy(out, values)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get resolves id, consulting the repository on a cache miss. Repository
// errors surface as partner.ErrNotFound — never as a raw error — so the
// broadcast path never sees cache-subsystem exceptions.
func (c *PartnerCache) Get(ctx context.Context, id string) (partner.Partner, error) {
	store := c.store.Load()
	if p, ok := store.Get(id); ok {
		return p, nil
	}

	var p partner.Partner
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		p, innerErr = c.repo.FindByIDAndEnabled(ctx, id)
		return innerErr
	})
	if err != nil {
		if !errors.Is(err, partner.ErrNotFound) {
			c.logger.Warn("partner cache: repository lookup failed, reporting not-found",
				slog.String("partner_id", id), slog.Any("error", err))
		}
		return partner.Partner{}, partner.ErrNotFound
	}

	store.Add(id, p)
	return p, nil
}

// Create writes a new partner through to the repository, then performs a
// full cache refresh (invalidate-and-preload).
func (c *PartnerCache) Create(ctx context.Context, p partner.Partner) (partner.Partner, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	saved, err := c.repo.Save(ctx, p)
	if err != nil {
		return partner.Partner{}, err
	}
	if err := c.refreshLocked(ctx); err != nil {
		c.logger.Error("partner cache: refresh after create failed", slog.Any("error", err))
	}
	return saved, nil
}

// Update writes changes through to the repository, then invalidates the
// single cache entry (the next Get re-fetches it).
func (c *PartnerCache) Update(ctx context.Context, p partner.Partner) (partner.Partner, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	saved, err := c.repo.Save(ctx, p)
	if err != nil {
		return partner.Partner{}, err
	}
	c.store.Load().Remove(p.ID)
	return saved, nil
}

// Disable writes the enabled=false flag through to the repository, then
// invalidates the single cache entry.
func (c *PartnerCache) Disable(ctx context.Context, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.repo.SetEnabled(ctx, id, false); err != nil {
		return err
	}
	c.store.Load().Remove(id)
	return nil
}

// Refresh invalidates the entire cache and repopulates it from the
// repository's active-partners query.
func (c *PartnerCache) Refresh(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.refreshLocked(ctx)
}

// refreshLocked assumes writeMu is held.
func (c *PartnerCache) refreshLocked(ctx context.Context) error {
	var active []partner.Partner
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		active, innerErr = c.repo.FindActive(ctx)
		return innerErr
	})
	if err != nil {
		return err
	}

	// timeout_ms is bounded by the 5 s global broadcast budget.
	const maxTimeoutMillis = 5000
	fresh := lru.NewLRU[string, partner.Partner](c.capacity, nil, c.ttl)
	for _, p := range active {
		if p.ClampTimeout(maxTimeoutMillis) {
			c.logger.Warn("partner cache: timeout_ms clamped",
				slog.String("partner_id", p.ID), slog.Int("timeout_ms", p.TimeoutMillis))
		}
		fresh.Add(p.ID, p)
	}
	c.store.Store(fresh)
	return nil
}
