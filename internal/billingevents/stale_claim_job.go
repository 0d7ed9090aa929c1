package billingevents

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

const defaultClaimLease = 5 * time.Minute

// StaleClaimJobParams configure the stale claim recovery job.
type StaleClaimJobParams struct {
	Logger     *logger.Logger
	Repository Repository
	Lease      time.Duration
	Now        func() time.Time
}

// StaleClaimJob flips processing rows whose owner never finished (crash, deploy) to failed.
// Redelivery would take the claim over after the lease anyway; this makes the state durable
// and visible to operators.
type StaleClaimJob struct {
	logg  *logger.Logger
	repo  Repository
	lease time.Duration
	now   func() time.Time
}

// NewStaleClaimJob builds the job.
func NewStaleClaimJob(params StaleClaimJobParams) (*StaleClaimJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Repository == nil {
		return nil, errors.New("billing event repository required")
	}
	lease := params.Lease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &StaleClaimJob{
		logg:  params.Logger,
		repo:  params.Repository,
		lease: lease,
		now:   now,
	}, nil
}

func (j *StaleClaimJob) Name() string { return "billing-event-stale-claims" }

func (j *StaleClaimJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.lease)
	expired, err := j.repo.ExpireStaleClaims(ctx, cutoff)
	if err != nil {
		return err
	}
	if expired > 0 {
		ctx = j.logg.WithFields(ctx, map[string]any{
			"expired": expired,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
		j.logg.Warn(ctx, "expired stale billing event claims")
	}
	return nil
}
