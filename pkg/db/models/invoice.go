package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// Invoice is an append-only record of a provider invoice outcome. Amounts are in the
// currency's minor unit as reported by Stripe.
type Invoice struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID   uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null;index"`
	TeamID           uuid.UUID           `gorm:"column:team_id;type:uuid;not null;index"`
	StripeInvoiceID  string              `gorm:"column:stripe_invoice_id;not null;uniqueIndex:ux_invoices_stripe_status"`
	Status           enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;uniqueIndex:ux_invoices_stripe_status"`
	Subtotal         int64               `gorm:"column:subtotal;not null;default:0"`
	Tax              int64               `gorm:"column:tax;not null;default:0"`
	Total            int64               `gorm:"column:total;not null;default:0"`
	AmountPaid       int64               `gorm:"column:amount_paid;not null;default:0"`
	AmountDue        int64               `gorm:"column:amount_due;not null;default:0"`
	Currency         string              `gorm:"column:currency;not null"`
	InvoicePDF       *string             `gorm:"column:invoice_pdf"`
	HostedInvoiceURL *string             `gorm:"column:hosted_invoice_url"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error { return assignID(&i.ID) }
