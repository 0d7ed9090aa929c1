package stripewebhook

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/internal/notifications"
	"github.com/angelmondragon/billing-webhooks/internal/subscriptions"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
)

// A cancelled team keeps a single free seat.
const freePlanMemberCount = 1

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	var payload subscriptionPayload
	if err := decodeObject(event, &payload); err != nil {
		return err
	}
	if payload.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	ctx = s.logg.WithField(ctx, "stripe_subscription_id", payload.ID)

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)
		stored, err := billingRepo.FindSubscriptionByStripeID(ctx, payload.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if stored == nil {
			// Usually the checkout event for this subscription has not been processed yet.
			s.logg.Warn(ctx, "subscription not found, ignoring update")
			return nil
		}
		ctx := s.logg.WithTeamID(ctx, stored.TeamID.String())

		seats, err := s.memberships.WithTx(tx).CountActiveMembers(ctx, stored.TeamID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active members")
		}

		previous := stored.MemberCount
		seatsChanged := seats != previous
		item := payload.seatItem()
		if item != nil && item.Quantity != int64(seats) {
			seatsChanged = true
		}

		stored.Status = subscriptions.MapProviderStatus(payload.Status)
		stored.MemberCount = seats
		stored.CancelAtPeriodEnd = payload.CancelAtPeriodEnd
		stored.CanceledAt = unixPtr(payload.CanceledAt)
		if item != nil {
			if start := unixPtr(item.CurrentPeriodStart); start != nil {
				stored.CurrentPeriodStart = start
			}
			if end := unixPtr(item.CurrentPeriodEnd); end != nil {
				stored.CurrentPeriodEnd = end
			}
		}
		if err := billingRepo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}

		if !seatsChanged {
			return nil
		}
		record := &models.UsageRecord{
			SubscriptionID: stored.ID,
			TeamID:         stored.TeamID,
			MemberCount:    seats,
			PreviousCount:  previous,
			RecordedAt:     s.now(),
		}
		if err := billingRepo.CreateUsageRecord(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create usage record")
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"member_count":   seats,
			"previous_count": previous,
		}), "seat count changed")
		return nil
	})
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var payload subscriptionPayload
	if err := decodeObject(event, &payload); err != nil {
		return err
	}
	if payload.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	ctx = s.logg.WithField(ctx, "stripe_subscription_id", payload.ID)

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)
		stored, err := billingRepo.FindSubscriptionByStripeID(ctx, payload.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if stored == nil {
			s.logg.Warn(ctx, "subscription not found, ignoring deletion")
			return nil
		}
		ctx := s.logg.WithTeamID(ctx, stored.TeamID.String())

		freePlan, err := billingRepo.FindPlanByType(ctx, enums.PlanTypeFree)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load free plan")
		}
		if freePlan == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "free plan not configured")
		}

		now := s.now()
		stored.Status = enums.SubscriptionStatusCanceled
		stored.CanceledAt = &now
		stored.PlanID = freePlan.ID
		stored.PricePerMember = decimal.Zero
		stored.MemberCount = freePlanMemberCount
		if err := billingRepo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "downgrade subscription")
		}

		notice := notifications.Notice{
			Kind:           enums.EventBillingSubscriptionEnded,
			SourceEventID:  event.ID,
			TeamID:         stored.TeamID,
			SubscriptionID: stored.ID,
			OccurredAt:     now,
		}
		if err := s.notify(ctx, tx, notice); err != nil {
			return err
		}
		s.logg.Info(ctx, "subscription canceled, team moved to free plan")
		return nil
	})
}

// notify fills in the owner's address and hands the notice to the notifier inside tx.
func (s *Service) notify(ctx context.Context, tx *gorm.DB, notice notifications.Notice) error {
	team, err := s.memberships.WithTx(tx).FindTeam(ctx, notice.TeamID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team owner")
	}
	if team != nil {
		notice.OwnerEmail = team.OwnerEmail
	}
	if err := s.notifier.Notify(ctx, tx, notice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "notify "+string(notice.Kind))
	}
	return nil
}
