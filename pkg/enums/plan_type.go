package enums

// PlanType identifies a subscription tier.
type PlanType string

const (
	PlanTypeFree    PlanType = "FREE"
	PlanTypePro     PlanType = "PRO"
	PlanTypePremium PlanType = "PREMIUM"
)

var planTypes = newSet("plan type", PlanTypeFree, PlanTypePro, PlanTypePremium).folded()

func (p PlanType) String() string { return string(p) }

func (p PlanType) IsValid() bool { return planTypes.has(p) }

// ParsePlanType matches case-insensitively.
func ParsePlanType(value string) (PlanType, error) { return planTypes.parse(value) }
