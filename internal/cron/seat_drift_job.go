package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/billing-webhooks/internal/subscriptions"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

const defaultSeatDriftPage = 500

type subscriptionLister interface {
	ListSubscriptionsByStatus(ctx context.Context, statuses []enums.SubscriptionStatus, after uuid.UUID, limit int) ([]models.Subscription, error)
}

type memberCounter interface {
	CountActiveMembers(ctx context.Context, teamID uuid.UUID) (int, error)
}

// SeatDriftJobParams configure the seat drift audit.
type SeatDriftJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionLister
	Members       memberCounter
	PageSize      int
}

// NewSeatDriftJob builds a job that reports billable subscriptions whose stored seat
// count no longer matches the team's active members. It only reports; seat counts are
// corrected by the next subscription event for that team.
func NewSeatDriftJob(params SeatDriftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Members == nil {
		return nil, fmt.Errorf("membership repository required")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultSeatDriftPage
	}
	return &seatDriftJob{
		logg:     params.Logger,
		subs:     params.Subscriptions,
		members:  params.Members,
		pageSize: pageSize,
	}, nil
}

type seatDriftJob struct {
	logg     *logger.Logger
	subs     subscriptionLister
	members  memberCounter
	pageSize int
	// drifted and scanned are the counts from the most recent run.
	drifted int
	scanned int
}

func (j *seatDriftJob) Name() string { return "seat-drift-audit" }

// Run walks every billable subscription page by page, keyed on id.
func (j *seatDriftJob) Run(ctx context.Context) error {
	statuses := subscriptions.BillableStatuses()
	var (
		errs    error
		after   uuid.UUID
		scanned int
		drifted int
	)
	for {
		page, err := j.subs.ListSubscriptionsByStatus(ctx, statuses, after, j.pageSize)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list billable subscriptions after %s: %w", after, err))
			break
		}
		scanned += len(page)
		n, err := j.auditPage(ctx, page)
		drifted += n
		errs = multierr.Append(errs, err)
		if len(page) < j.pageSize {
			break
		}
		after = page[len(page)-1].ID
	}
	j.scanned, j.drifted = scanned, drifted
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned": scanned,
		"drifted": drifted,
	}), "seat drift audit complete")
	return errs
}

func (j *seatDriftJob) auditPage(ctx context.Context, page []models.Subscription) (int, error) {
	var errs error
	drifted := 0
	for i := range page {
		sub := &page[i]
		if !subscriptions.IsBillable(sub.Status) {
			continue
		}
		active, err := j.members.CountActiveMembers(ctx, sub.TeamID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("count members for team %s: %w", sub.TeamID, err))
			continue
		}
		if active == sub.MemberCount {
			continue
		}
		drifted++
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"subscription_id": sub.ID.String(),
			"team_id":         sub.TeamID.String(),
			"member_count":    sub.MemberCount,
			"active_members":  active,
		}), "subscription seat count drifted from membership")
	}
	return drifted, errs
}
