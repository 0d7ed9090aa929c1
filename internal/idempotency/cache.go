package idempotency

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

const defaultCacheSize = 10000

// Cache remembers event IDs that were fully processed. It is an optimization only;
// the billing_events table remains the source of truth.
type Cache interface {
	Seen(ctx context.Context, eventID string) bool
	Remember(ctx context.Context, eventID string, at time.Time)
}

// MemoryCache is a bounded, process-local cache of processed event IDs.
type MemoryCache struct {
	entries *lru.Cache[string, time.Time]
}

// NewMemoryCache builds a cache holding at most size entries, evicting the least recently used.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Seen(_ context.Context, eventID string) bool {
	return c.entries.Contains(eventID)
}

func (c *MemoryCache) Remember(_ context.Context, eventID string, at time.Time) {
	c.entries.Add(eventID, at)
}

// Sweep drops entries remembered before cutoff and returns how many were removed.
func (c *MemoryCache) Sweep(cutoff time.Time) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		at, ok := c.entries.Peek(key)
		if !ok || !at.Before(cutoff) {
			continue
		}
		if c.entries.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len reports the number of cached event IDs.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	ProcessedEventKey(eventID string) string
}

// RedisCache shares processed event IDs across API replicas. Redis errors are logged
// and treated as a miss so the durable store decides.
type RedisCache struct {
	store redisStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewRedisCache builds a shared cache tier whose keys expire after ttl.
func NewRedisCache(store redisStore, ttl time.Duration, logg *logger.Logger) (*RedisCache, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if ttl <= 0 {
		ttl = defaultRetention
	}
	return &RedisCache{store: store, ttl: ttl, logg: logg}, nil
}

func (c *RedisCache) Seen(ctx context.Context, eventID string) bool {
	ok, err := c.store.Exists(ctx, c.store.ProcessedEventKey(eventID))
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "shared event cache lookup failed")
		return false
	}
	return ok
}

func (c *RedisCache) Remember(ctx context.Context, eventID string, at time.Time) {
	if err := c.store.Set(ctx, c.store.ProcessedEventKey(eventID), at.UTC().Format(time.RFC3339), c.ttl); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "shared event cache write failed")
	}
}

// Tiered consults caches in order. A hit in a later tier is copied into the earlier ones,
// stamped with the tier's clock.
type Tiered struct {
	tiers []Cache
	now   func() time.Time
}

// NewTiered layers caches fastest first. A nil now uses the wall clock.
func NewTiered(now func() time.Time, tiers ...Cache) *Tiered {
	if now == nil {
		now = time.Now
	}
	return &Tiered{tiers: tiers, now: now}
}

func (t *Tiered) Seen(ctx context.Context, eventID string) bool {
	for i, cache := range t.tiers {
		if !cache.Seen(ctx, eventID) {
			continue
		}
		at := t.now().UTC()
		for _, earlier := range t.tiers[:i] {
			earlier.Remember(ctx, eventID, at)
		}
		return true
	}
	return false
}

func (t *Tiered) Remember(ctx context.Context, eventID string, at time.Time) {
	for _, cache := range t.tiers {
		cache.Remember(ctx, eventID, at)
	}
}
