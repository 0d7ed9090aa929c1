package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
)

const defaultInterval = time.Hour

type ServiceParams struct {
	Name     string
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs its registry once per interval behind a Lock. The API binary pairs it
// with a LocalLock for the cache sweep; the cron worker uses a RedisLock.
type Service struct {
	ServiceParams
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	if params.Registry == nil {
		params.Registry = NewRegistry()
	}
	if params.Interval <= 0 {
		params.Interval = defaultInterval
	}
	if params.Name == "" {
		params.Name = "cron"
	}
	return &Service{params}, nil
}

// Run starts a cycle right away, then one per tick, until ctx is canceled. Cycle
// failures are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.Logger.WithField(ctx, "scheduler", s.Name)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.Logger.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.Logger.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every registered job once while holding the lock. A failing job does
// not stop the ones after it; all failures come back combined. Only a lost lease skips
// the remaining jobs; a canceled parent context is left for each job to observe.
func (s *Service) RunOnce(ctx context.Context) (errs error) {
	held, err := s.Lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.Logger.Info(ctx, "cron lock held elsewhere, skipping cycle")
		s.Metrics.IncSkipped(s.Name)
		return nil
	}

	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Error(ctx, "failed to release cron lock", err)
		}
	}()
	cycleCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	if lease, ok := s.Lock.(renewable); ok {
		go s.keepAlive(cycleCtx, lease, stop)
	}

	for _, job := range s.Registry.Jobs() {
		if cause := context.Cause(cycleCtx); errors.Is(cause, errLeaseLost) {
			return multierr.Append(errs, fmt.Errorf("cycle aborted before %s: %w", job.Name(), cause))
		}
		if err := s.runJob(cycleCtx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errs
}

// keepAlive renews the lease at a third of its TTL. Losing the lease cancels the cycle
// so two replicas never keep running jobs at once.
func (s *Service) keepAlive(ctx context.Context, lease renewable, stop context.CancelCauseFunc) {
	ticker := time.NewTicker(lease.TTL() / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.Logger.Error(ctx, "cron lease renewal failed", err)
				if errors.Is(err, errLeaseLost) {
					stop(err)
					return
				}
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.Logger.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	s.Metrics.RecordRun(job.Name(), elapsed, err)

	ctx = s.Logger.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.Logger.Error(ctx, "job failed", err)
		return err
	}
	s.Logger.Debug(ctx, "job completed")
	return nil
}
