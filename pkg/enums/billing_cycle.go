package enums

// BillingCycle defines how often a team subscription renews.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleYearly  BillingCycle = "YEARLY"
)

// Checkout metadata is written by the web client, so parsing ignores case.
var billingCycles = newSet("billing cycle", BillingCycleMonthly, BillingCycleYearly).folded()

func (b BillingCycle) String() string { return string(b) }

func (b BillingCycle) IsValid() bool { return billingCycles.has(b) }

func ParseBillingCycle(value string) (BillingCycle, error) { return billingCycles.parse(value) }
