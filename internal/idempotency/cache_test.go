package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

func TestMemoryCacheSweepDropsExpiredEntries(t *testing.T) {
	cache, err := NewMemoryCache(8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()
	cache.Remember(ctx, "evt_old", fixedNow.Add(-25*time.Hour))
	cache.Remember(ctx, "evt_new", fixedNow.Add(-time.Hour))

	if removed := cache.Sweep(fixedNow.Add(-24 * time.Hour)); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if cache.Seen(ctx, "evt_old") {
		t.Fatal("expected expired entry to be swept")
	}
	if !cache.Seen(ctx, "evt_new") {
		t.Fatal("expected recent entry to survive")
	}
}

func TestMemoryCacheIsBounded(t *testing.T) {
	cache, err := NewMemoryCache(2)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()
	cache.Remember(ctx, "evt_1", fixedNow)
	cache.Remember(ctx, "evt_2", fixedNow)
	cache.Remember(ctx, "evt_3", fixedNow)
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if cache.Seen(ctx, "evt_1") {
		t.Fatal("expected oldest entry to be evicted")
	}
}

type fakeRedis struct {
	values map[string]any
	ttl    time.Duration
	err    error
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	if f.values == nil {
		f.values = map[string]any{}
	}
	f.values[key] = value
	f.ttl = ttl
	return nil
}

func (f *fakeRedis) Exists(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeRedis) ProcessedEventKey(eventID string) string {
	return "billing:webhook:processed:" + eventID
}

func TestRedisCacheRoundTrip(t *testing.T) {
	store := &fakeRedis{}
	cache, err := NewRedisCache(store, 24*time.Hour, logger.Nop())
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	ctx := context.Background()
	cache.Remember(ctx, "evt_1", fixedNow)
	if !cache.Seen(ctx, "evt_1") {
		t.Fatal("expected remembered event to be seen")
	}
	if store.ttl != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %s", store.ttl)
	}
	if _, ok := store.values["billing:webhook:processed:evt_1"]; !ok {
		t.Fatal("expected namespaced key")
	}
}

func TestRedisCacheErrorsAreMisses(t *testing.T) {
	cache, err := NewRedisCache(&fakeRedis{err: errors.New("conn refused")}, time.Hour, logger.Nop())
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	ctx := context.Background()
	cache.Remember(ctx, "evt_1", fixedNow)
	if cache.Seen(ctx, "evt_1") {
		t.Fatal("expected redis failure to read as a miss")
	}
}

func TestTieredBackfillsEarlierTiers(t *testing.T) {
	local, err := NewMemoryCache(4)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	shared, err := NewMemoryCache(4)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()
	shared.Remember(ctx, "evt_1", fixedNow)

	backfilledAt := fixedNow.Add(-48 * time.Hour)
	tiers := NewTiered(func() time.Time { return backfilledAt }, local, shared)
	if !tiers.Seen(ctx, "evt_1") {
		t.Fatal("expected shared tier hit")
	}
	if !local.Seen(ctx, "evt_1") {
		t.Fatal("expected local tier to be backfilled")
	}
	if removed := local.Sweep(fixedNow.Add(-24 * time.Hour)); removed != 1 {
		t.Fatalf("expected backfill stamped by the injected clock to be swept, removed %d", removed)
	}

	tiers.Remember(ctx, "evt_2", fixedNow)
	if !local.Seen(ctx, "evt_2") || !shared.Seen(ctx, "evt_2") {
		t.Fatal("expected remember to reach every tier")
	}
}
