package subscriptions

import (
	"slices"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

var providerStatuses = map[stripe.SubscriptionStatus]enums.SubscriptionStatus{
	stripe.SubscriptionStatusActive:            enums.SubscriptionStatusActive,
	stripe.SubscriptionStatusPastDue:           enums.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusCanceled:          enums.SubscriptionStatusCanceled,
	stripe.SubscriptionStatusIncomplete:        enums.SubscriptionStatusIncomplete,
	stripe.SubscriptionStatusIncompleteExpired: enums.SubscriptionStatusIncompleteExpired,
	stripe.SubscriptionStatusTrialing:          enums.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusUnpaid:            enums.SubscriptionStatusUnpaid,
	// There is no local paused state; a paused subscription is not billable.
	stripe.SubscriptionStatusPaused: enums.SubscriptionStatusCanceled,
}

// MapProviderStatus translates a Stripe subscription status into the local enum.
// Anything outside Stripe's documented set maps to CANCELED.
func MapProviderStatus(raw stripe.SubscriptionStatus) enums.SubscriptionStatus {
	normalized := stripe.SubscriptionStatus(strings.ToLower(strings.TrimSpace(string(raw))))
	if mapped, ok := providerStatuses[normalized]; ok {
		return mapped
	}
	return enums.SubscriptionStatusCanceled
}

var billable = []enums.SubscriptionStatus{
	enums.SubscriptionStatusActive,
	enums.SubscriptionStatusTrialing,
	enums.SubscriptionStatusPastDue,
}

// BillableStatuses lists the local states that keep paid features enabled.
func BillableStatuses() []enums.SubscriptionStatus { return slices.Clone(billable) }

// IsBillable reports whether the status keeps paid features enabled.
func IsBillable(status enums.SubscriptionStatus) bool { return slices.Contains(billable, status) }
