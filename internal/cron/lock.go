package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// Lock gates a scheduler cycle. Acquire reports false, not an error, when someone
// else holds it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// renewable locks expire on their own and must be extended while a long cycle runs.
type renewable interface {
	Lock
	Renew(ctx context.Context) error
	TTL() time.Duration
}

var errLeaseLost = errors.New("cron lease lost")

type leaseStore interface {
	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, owner string) (bool, error)
	ExtendLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// LocalLock keeps cycles of a single process from overlapping.
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock { return &LocalLock{} }

func (l *LocalLock) Acquire(context.Context) (bool, error) { return l.mu.TryLock(), nil }

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}

// RedisLock is a lease shared by every cron worker replica. Each Acquire mints a fresh
// owner token; Release and Renew only act while that token is still stored.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	owner string
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("lease store required")
	case key == "":
		return nil, errors.New("lock key required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) TTL() time.Duration { return l.ttl }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.AcquireLease(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if ok {
		l.setOwner(owner)
	}
	return ok, nil
}

// Renew extends the held lease by a full TTL. It returns errLeaseLost when the lease
// expired and another replica took it.
func (l *RedisLock) Renew(ctx context.Context) error {
	owner := l.currentOwner()
	if owner == "" {
		return errLeaseLost
	}
	ok, err := l.store.ExtendLease(ctx, l.key, owner, l.ttl)
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", l.key, err)
	}
	if !ok {
		l.setOwner("")
		return errLeaseLost
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	owner := l.currentOwner()
	if owner == "" {
		return nil
	}
	l.setOwner("")
	if _, err := l.store.ReleaseLease(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}

func (l *RedisLock) currentOwner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

func (l *RedisLock) setOwner(owner string) {
	l.mu.Lock()
	l.owner = owner
	l.mu.Unlock()
}
