package billingevents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

type fakeRepo struct {
	Repository
	cutoff  time.Time
	expired int64
	err     error
}

func (f *fakeRepo) ExpireStaleClaims(_ context.Context, claimedBefore time.Time) (int64, error) {
	f.cutoff = claimedBefore
	return f.expired, f.err
}

func (f *fakeRepo) FindByProviderEventID(context.Context, string) (*models.BillingEvent, error) {
	return nil, nil
}

func TestStaleClaimJobUsesLeaseCutoff(t *testing.T) {
	repo := &fakeRepo{expired: 2}
	job, err := NewStaleClaimJob(StaleClaimJobParams{
		Logger:     logger.Nop(),
		Repository: repo,
		Lease:      10 * time.Minute,
		Now:        func() time.Time { return baseTime },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := baseTime.Add(-10 * time.Minute); !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, repo.cutoff)
	}
}

func TestStaleClaimJobPropagatesErrors(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	job, err := NewStaleClaimJob(StaleClaimJobParams{Logger: logger.Nop(), Repository: repo})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected repository error to surface")
	}
}

func TestNewStaleClaimJobRequiresDeps(t *testing.T) {
	if _, err := NewStaleClaimJob(StaleClaimJobParams{Repository: &fakeRepo{}}); err == nil {
		t.Fatal("expected logger to be required")
	}
	if _, err := NewStaleClaimJob(StaleClaimJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected repository to be required")
	}
}
