package stripewebhook

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/internal/subscriptions"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
)

type seatCorrection struct {
	itemID   string
	quantity int64
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session checkoutSessionPayload
	if err := decodeObject(event, &session); err != nil {
		return err
	}
	meta, err := parseCheckoutMetadata(s.validate, session.Metadata)
	if err != nil {
		return err
	}
	if session.Subscription.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no subscription").
			WithDetails(map[string]any{"sessionId": session.ID})
	}
	ctx = s.logg.WithTeamID(ctx, meta.TeamID.String())

	// The provider read happens before the transaction so no connection is held across retries.
	providerSub, err := s.retrieveSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}
	item := primaryItem(providerSub)

	var correction *seatCorrection
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)
		members := s.memberships.WithTx(tx)

		team, err := members.FindTeam(ctx, meta.TeamID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
		}
		if team == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "team not found").
				WithDetails(map[string]any{"teamId": meta.TeamID.String()})
		}
		plan, err := billingRepo.FindPlanByType(ctx, meta.PlanType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}
		if plan == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "plan not configured").
				WithDetails(map[string]any{"planType": meta.PlanType.String()})
		}
		seats, err := members.CountActiveMembers(ctx, team.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active members")
		}

		existing, err := billingRepo.FindSubscriptionByTeamID(ctx, team.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team subscription")
		}
		if existing != nil && existing.PlanID != plan.ID {
			// Checkout metadata is trusted as-is; a later session overwrites an earlier one.
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"previous_plan_id":       existing.PlanID.String(),
				"plan_type":              meta.PlanType.String(),
				"stripe_subscription_id": providerSub.ID,
			}), "reconciliation risk: checkout metadata replaces the team's plan")
		}

		sub := &models.Subscription{
			TeamID:               team.ID,
			PlanID:               plan.ID,
			StripeSubscriptionID: stringPtr(providerSub.ID),
			StripeCustomerID:     stringPtr(customerID(session, providerSub)),
			Status:               subscriptions.MapProviderStatus(providerSub.Status),
			BillingCycle:         meta.BillingCycle,
			MemberCount:          seats,
			PricePerMember:       plan.PricePerMember,
			CancelAtPeriodEnd:    providerSub.CancelAtPeriodEnd,
			CanceledAt:           unixPtr(providerSub.CanceledAt),
		}
		if item != nil {
			sub.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
			sub.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
			if item.Price != nil {
				sub.StripePriceID = stringPtr(item.Price.ID)
				if item.Price.Product != nil {
					sub.StripeProductID = stringPtr(item.Price.Product.ID)
				}
			}
		}
		if err := billingRepo.UpsertSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert subscription")
		}

		if item != nil && item.ID != "" && item.Quantity != int64(seats) {
			correction = &seatCorrection{itemID: item.ID, quantity: int64(seats)}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if correction == nil {
		return nil
	}
	return s.pushSeatQuantity(ctx, correction.itemID, correction.quantity)
}

// primaryItem returns the seat item; team subscriptions carry a single per-member price.
func primaryItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0]
}

func customerID(session checkoutSessionPayload, sub *stripe.Subscription) string {
	if session.Customer.ID != "" {
		return session.Customer.ID
	}
	if sub != nil && sub.Customer != nil {
		return sub.Customer.ID
	}
	return ""
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func unixPtr(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
