package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultPruneBatch      = 500
	maxPruneBatches        = 20
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	PruneSettled(tx *gorm.DB, cutoff time.Time, terminalAttempts, limit int) (int64, error)
}

// OutboxRetentionJobParams configure pruning of settled billing notices.
type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	// Retention is how long settled rows are kept. Defaults to 30 days.
	Retention time.Duration
	// TerminalAttempts must match the publisher's attempt ceiling so dead-lettered rows
	// are recognized as settled.
	TerminalAttempts int
	BatchSize        int
	Now              func() time.Time
}

type outboxRetentionJob struct {
	OutboxRetentionJobParams
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	case params.TerminalAttempts <= 0:
		return nil, errors.New("terminal attempts must be positive")
	}
	if params.Retention <= 0 {
		params.Retention = defaultOutboxRetention
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultPruneBatch
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &outboxRetentionJob{params}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes settled rows older than the retention window, one short transaction per
// batch, stopping after maxPruneBatches so a backlog spreads across cycles.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.Now().UTC().Add(-j.Retention)
	var total int64
	for batch := 0; batch < maxPruneBatches; batch++ {
		var deleted int64
		err := j.DB.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := j.Repository.PruneSettled(tx, cutoff, j.TerminalAttempts, j.BatchSize)
			deleted = n
			return err
		})
		if err != nil {
			return fmt.Errorf("prune outbox batch %d: %w", batch, err)
		}
		total += deleted
		if deleted < int64(j.BatchSize) {
			break
		}
	}

	j.Logger.Info(j.Logger.WithFields(ctx, map[string]any{
		"cutoff":       cutoff.Format(time.RFC3339),
		"rows_deleted": total,
	}), "outbox retention cleanup complete")
	return nil
}
