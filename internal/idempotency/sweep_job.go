package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
)

// CacheSweepJobParams configure the in-process cache retention sweep.
type CacheSweepJobParams struct {
	Logger    *logger.Logger
	Cache     *MemoryCache
	Metrics   *metrics.WebhookMetrics
	Retention time.Duration
	Now       func() time.Time
}

// CacheSweepJob evicts processed event IDs older than the retention window.
type CacheSweepJob struct {
	logg      *logger.Logger
	cache     *MemoryCache
	metrics   *metrics.WebhookMetrics
	retention time.Duration
	now       func() time.Time
}

func NewCacheSweepJob(params CacheSweepJobParams) (*CacheSweepJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Cache == nil {
		return nil, errors.New("memory cache required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &CacheSweepJob{
		logg:      params.Logger,
		cache:     params.Cache,
		metrics:   params.Metrics,
		retention: retention,
		now:       now,
	}, nil
}

func (j *CacheSweepJob) Name() string { return "webhook-cache-sweep" }

func (j *CacheSweepJob) Run(ctx context.Context) error {
	removed := j.cache.Sweep(j.now().Add(-j.retention))
	remaining := j.cache.Len()
	j.metrics.SetCacheEntries(remaining)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"removed":   removed,
		"remaining": remaining,
	})
	j.logg.Debug(logCtx, "processed event cache swept")
	return nil
}
