package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/billing-webhooks/internal/billing"
	"github.com/angelmondragon/billing-webhooks/internal/memberships"
	"github.com/angelmondragon/billing-webhooks/pkg/db/dbtest"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

func TestSeatDriftJobCountsDriftedSubscriptions(t *testing.T) {
	conn := dbtest.Open(t)
	plans := dbtest.SeedPlans(t, conn)
	repo := billing.NewRepository(conn)
	ctx := context.Background()

	seed := func(active, stored int, status enums.SubscriptionStatus) {
		team := dbtest.SeedTeam(t, conn, active)
		require.NoError(t, repo.UpsertSubscription(ctx, &models.Subscription{
			TeamID:       team.ID,
			PlanID:       plans[enums.PlanTypePro].ID,
			Status:       status,
			BillingCycle: enums.BillingCycleMonthly,
			MemberCount:  stored,
		}))
	}
	seed(3, 3, enums.SubscriptionStatusActive)
	seed(4, 2, enums.SubscriptionStatusPastDue)
	seed(5, 1, enums.SubscriptionStatusCanceled)

	jobIface, err := NewSeatDriftJob(SeatDriftJobParams{
		Logger:        logger.Nop(),
		Subscriptions: repo,
		Members:       memberships.NewRepository(conn),
	})
	require.NoError(t, err)
	job := jobIface.(*seatDriftJob)

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 1, job.drifted)
	assert.Equal(t, 2, job.scanned)
	assert.Equal(t, "seat-drift-audit", job.Name())
}

func TestSeatDriftJobAuditsEveryPage(t *testing.T) {
	conn := dbtest.Open(t)
	plans := dbtest.SeedPlans(t, conn)
	repo := billing.NewRepository(conn)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		team := dbtest.SeedTeam(t, conn, 2)
		require.NoError(t, repo.UpsertSubscription(ctx, &models.Subscription{
			TeamID:       team.ID,
			PlanID:       plans[enums.PlanTypePro].ID,
			Status:       enums.SubscriptionStatusActive,
			BillingCycle: enums.BillingCycleMonthly,
			MemberCount:  1,
		}))
	}

	jobIface, err := NewSeatDriftJob(SeatDriftJobParams{
		Logger:        logger.Nop(),
		Subscriptions: repo,
		Members:       memberships.NewRepository(conn),
		PageSize:      2,
	})
	require.NoError(t, err)
	job := jobIface.(*seatDriftJob)

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 5, job.scanned)
	assert.Equal(t, 5, job.drifted)

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 5, job.scanned, "a second run starts from the first page again")
}

type failingCounter struct{}

func (failingCounter) CountActiveMembers(context.Context, uuid.UUID) (int, error) {
	return 0, errors.New("db down")
}

type staticLister struct {
	subs []models.Subscription
}

func (s staticLister) ListSubscriptionsByStatus(_ context.Context, _ []enums.SubscriptionStatus, after uuid.UUID, _ int) ([]models.Subscription, error) {
	if after != uuid.Nil {
		return nil, nil
	}
	return s.subs, nil
}

func TestSeatDriftJobCombinesCountErrors(t *testing.T) {
	job, err := NewSeatDriftJob(SeatDriftJobParams{
		Logger:        logger.Nop(),
		Subscriptions: staticLister{subs: []models.Subscription{
			{ID: uuid.New(), TeamID: uuid.New(), Status: enums.SubscriptionStatusActive},
			{ID: uuid.New(), TeamID: uuid.New(), Status: enums.SubscriptionStatusTrialing},
		}},
		Members:       failingCounter{},
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
