package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLeases struct {
	owners map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryLeases() *memoryLeases {
	return &memoryLeases{owners: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLeases) AcquireLease(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, held := m.owners[key]; held {
		return false, nil
	}
	m.owners[key], m.ttls[key] = owner, ttl
	return true, nil
}

func (m *memoryLeases) ReleaseLease(_ context.Context, key, owner string) (bool, error) {
	if m.owners[key] != owner {
		return false, nil
	}
	delete(m.owners, key)
	return true, nil
}

func (m *memoryLeases) ExtendLease(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if m.owners[key] != owner {
		return false, nil
	}
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLeases) expire(key string) { delete(m.owners, key) }

func TestRedisLockExcludesSecondOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLeases()
	first, err := NewRedisLock(store, "billing:lock:cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "billing:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.owners, "billing:lock:cron", "non-owner release must keep the lease")

	require.NoError(t, first.Release(ctx))
	ok, _ = second.Acquire(ctx)
	assert.True(t, ok)
}

func TestRedisLockRenew(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLeases()
	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.TTL())

	assert.ErrorIs(t, lock.Renew(ctx), errLeaseLost, "renew without acquire")

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lock.Renew(ctx))

	store.expire("k")
	_, _ = store.AcquireLease(ctx, "k", "someone-else", time.Minute)
	assert.ErrorIs(t, lock.Renew(ctx), errLeaseLost)
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "someone-else", store.owners["k"])
}

func TestRedisLockWrapsStoreErrors(t *testing.T) {
	store := newMemoryLeases()
	store.err = errors.New("connection refused")
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.ErrorIs(t, err, store.err)
}

func TestNewRedisLockValidatesArguments(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryLeases(), "", time.Minute)
	assert.Error(t, err)
}

func TestLocalLockPreventsOverlap(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()
	ok, _ := lock.Acquire(ctx)
	require.True(t, ok)
	ok, _ = lock.Acquire(ctx)
	assert.False(t, ok)
	require.NoError(t, lock.Release(ctx))
	ok, _ = lock.Acquire(ctx)
	assert.True(t, ok)
}
