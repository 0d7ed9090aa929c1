package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

// losingLease acquires fine but fails every renewal.
type losingLease struct {
	fakeLock
	renewals atomic.Int32
}

func (l *losingLease) Renew(context.Context) error {
	l.renewals.Add(1)
	return errLeaseLost
}

func (l *losingLease) TTL() time.Duration { return 30 * time.Millisecond }

type testJob struct {
	name  string
	err   error
	runs  int
	block bool
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(ctx context.Context) error {
	j.runs++
	if j.block {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return j.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(jobs...), Lock: lock})
	require.NoError(t, err)
	return service
}

func TestServiceRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	first := &testJob{name: "fail-a", err: errors.New("boom")}
	second := &testJob{name: "fail-b", err: errors.New("bust")}
	lock := &fakeLock{}

	err := newTestService(t, lock, first, success, second).RunOnce(context.Background())

	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "fail-a: boom")
	for _, job := range []*testJob{first, success, second} {
		assert.Equal(t, 1, job.runs, job.name)
	}
	assert.Equal(t, 1, lock.releases)
}

func TestServiceRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "sweep"}
	require.NoError(t, newTestService(t, &fakeLock{held: true}, job).RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestServiceAbortsCycleWhenLeaseLost(t *testing.T) {
	slow := &testJob{name: "slow", block: true}
	after := &testJob{name: "after"}
	lease := &losingLease{}

	err := newTestService(t, lease, slow, after).RunOnce(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errLeaseLost)
	assert.Equal(t, 1, slow.runs)
	assert.Zero(t, after.runs, "jobs after a lost lease must not start")
	assert.GreaterOrEqual(t, lease.renewals.Load(), int32(1))
	assert.Equal(t, 1, lease.releases)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "sweep"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestService(t, NewLocalLock(), job).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs, "the immediate cycle still runs")
}

func TestServiceRunOnceRunsEveryJobAfterParentCancel(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestService(t, &fakeLock{}, first, second).RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, second.runs)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
