package enums

// SubscriptionStatus is the local projection of a Stripe subscription state. The
// mapping from Stripe's lowercase statuses lives in internal/subscriptions.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue           SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled          SubscriptionStatus = "CANCELED"
	SubscriptionStatusIncomplete        SubscriptionStatus = "INCOMPLETE"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "INCOMPLETE_EXPIRED"
	SubscriptionStatusTrialing          SubscriptionStatus = "TRIALING"
	SubscriptionStatusUnpaid            SubscriptionStatus = "UNPAID"
)

var subscriptionStatuses = newSet("subscription status",
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
	SubscriptionStatusIncomplete,
	SubscriptionStatusIncompleteExpired,
	SubscriptionStatusTrialing,
	SubscriptionStatusUnpaid,
)

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) IsValid() bool { return subscriptionStatuses.has(s) }

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return subscriptionStatuses.parse(value)
}
