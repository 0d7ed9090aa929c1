package stripewebhook

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
)

// ProviderClient is the part of the Stripe API the reconciler calls.
type ProviderClient interface {
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	UpdateSubscriptionItemQuantity(ctx context.Context, itemID string, quantity int64) error
}

// retrieveSubscription tolerates Stripe's read-after-write lag right after checkout by
// retrying with a fixed delay. Exhausting the attempts is fatal for the delivery.
func (s *Service) retrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retrieveAttempts; attempt++ {
		sub, err := s.provider.RetrieveSubscription(ctx, subscriptionID)
		s.metrics.RecordProviderCall("retrieve_subscription", err)
		if err == nil && sub != nil {
			return sub, nil
		}
		if err == nil {
			err = pkgerrors.New(pkgerrors.CodeNotFound, "stripe returned no subscription")
		}
		lastErr = err
		if attempt == s.retrieveAttempts {
			break
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"subscription_id": subscriptionID,
			"attempt":         attempt,
			"error":           err.Error(),
		}), "stripe subscription retrieve failed, retrying")
		if err := s.sleep(ctx, s.retrieveBackoff); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe subscription interrupted")
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "retrieve stripe subscription").
		WithDetails(map[string]any{"subscriptionId": subscriptionID, "attempts": s.retrieveAttempts})
}

// pushSeatQuantity corrects the Stripe item quantity after checkout when it disagrees
// with the team's active membership.
func (s *Service) pushSeatQuantity(ctx context.Context, itemID string, quantity int64) error {
	err := s.provider.UpdateSubscriptionItemQuantity(ctx, itemID, quantity)
	s.metrics.RecordProviderCall("update_item_quantity", err)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stripe seat quantity").
			WithDetails(map[string]any{"itemId": itemID, "quantity": quantity})
	}
	s.metrics.IncSeatCorrection()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"item_id":  itemID,
		"quantity": quantity,
	}), "stripe seat quantity corrected")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
