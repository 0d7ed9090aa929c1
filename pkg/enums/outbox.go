package enums

// OutboxAggregateType and OutboxEventType mirror the aggregate_type and event_type
// Postgres enums on outbox_events.
type (
	OutboxAggregateType string
	OutboxEventType     string
)

const (
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateInvoice      OutboxAggregateType = "invoice"
	AggregateTeam         OutboxAggregateType = "team"
)

const (
	EventBillingPaymentFailed     OutboxEventType = "billing.payment_failed"
	EventBillingPaymentRecovered  OutboxEventType = "billing.payment_recovered"
	EventBillingSubscriptionEnded OutboxEventType = "billing.subscription_ended"
)

var (
	aggregateTypes   = newSet("aggregate type", AggregateSubscription, AggregateInvoice, AggregateTeam)
	outboxEventTypes = newSet("event type", EventBillingPaymentFailed, EventBillingPaymentRecovered, EventBillingSubscriptionEnded)
)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

func (e OutboxEventType) String() string { return string(e) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse(value)
}
