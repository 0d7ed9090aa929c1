package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// Subscription is the local projection of a team's Stripe subscription.
// One row per team; the row survives cancellation and is downgraded to the free plan.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TeamID               uuid.UUID                `gorm:"column:team_id;type:uuid;not null;uniqueIndex"`
	PlanID               uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id;index"`
	StripePriceID        *string                  `gorm:"column:stripe_price_id"`
	StripeProductID      *string                  `gorm:"column:stripe_product_id"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'ACTIVE'"`
	BillingCycle         enums.BillingCycle       `gorm:"column:billing_cycle;type:billing_cycle;not null;default:'MONTHLY'"`
	MemberCount          int                      `gorm:"column:member_count;not null"`
	PricePerMember       decimal.Decimal          `gorm:"column:price_per_member;type:numeric(12,2);not null;default:0"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error { return assignID(&s.ID) }
