package enums

// BillingEventState tracks where a provider event is in its processing lifecycle:
// processing while claimed, then processed or failed.
type BillingEventState string

const (
	BillingEventProcessing BillingEventState = "processing"
	BillingEventProcessed  BillingEventState = "processed"
	BillingEventFailed     BillingEventState = "failed"
)

var billingEventStates = newSet("billing event state", BillingEventProcessing, BillingEventProcessed, BillingEventFailed)

func (s BillingEventState) String() string { return string(s) }

func (s BillingEventState) IsValid() bool { return billingEventStates.has(s) }

func ParseBillingEventState(value string) (BillingEventState, error) {
	return billingEventStates.parse(value)
}
