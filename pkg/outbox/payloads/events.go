package payloads

import (
	"time"

	"github.com/google/uuid"
)

// PaymentFailedEvent asks the notification service to warn the team owner about a failed charge.
type PaymentFailedEvent struct {
	TeamID           uuid.UUID `json:"team_id"`
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	OwnerEmail       string    `json:"owner_email"`
	StripeInvoiceID  string    `json:"stripe_invoice_id"`
	AmountDue        int64     `json:"amount_due"`
	Currency         string    `json:"currency"`
	HostedInvoiceURL *string   `json:"hosted_invoice_url,omitempty"`
}

// PaymentRecoveredEvent is emitted when a paid invoice moves a PAST_DUE subscription back to ACTIVE.
type PaymentRecoveredEvent struct {
	TeamID          uuid.UUID `json:"team_id"`
	SubscriptionID  uuid.UUID `json:"subscription_id"`
	OwnerEmail      string    `json:"owner_email"`
	StripeInvoiceID string    `json:"stripe_invoice_id"`
	AmountPaid      int64     `json:"amount_paid"`
	Currency        string    `json:"currency"`
}

// SubscriptionEndedEvent is emitted when a deleted subscription drops the team to the free plan.
type SubscriptionEndedEvent struct {
	TeamID         uuid.UUID `json:"team_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	OwnerEmail     string    `json:"owner_email"`
	CanceledAt     time.Time `json:"canceled_at"`
}

// TeamScoped is implemented by every notice addressed to a team.
type TeamScoped interface {
	Team() uuid.UUID
}

func (e PaymentFailedEvent) Team() uuid.UUID     { return e.TeamID }
func (e PaymentRecoveredEvent) Team() uuid.UUID  { return e.TeamID }
func (e SubscriptionEndedEvent) Team() uuid.UUID { return e.TeamID }
