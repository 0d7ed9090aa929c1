package stripewebhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
)

// Checkout metadata keys written by the web client when it creates the session.
const (
	metadataTeamID       = "teamId"
	metadataPlanType     = "planType"
	metadataBillingCycle = "billingCycle"
)

// objectRef decodes a Stripe reference that is either a bare ID or an expanded object.
type objectRef struct {
	ID string
}

func (r *objectRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	return nil
}

type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Customer     objectRef         `json:"customer"`
	Subscription objectRef         `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// subscriptionPayload carries the customer.subscription.* fields the handlers read.
type subscriptionPayload struct {
	ID                string                    `json:"id"`
	Status            stripe.SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd bool                      `json:"cancel_at_period_end"`
	CanceledAt        int64                     `json:"canceled_at"`
	Items             struct {
		Data []subscriptionItemPayload `json:"data"`
	} `json:"items"`
}

type subscriptionItemPayload struct {
	ID                 string `json:"id"`
	Quantity           int64  `json:"quantity"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

// seatItem returns the per-member item, or nil when the event carries no items.
func (p subscriptionPayload) seatItem() *subscriptionItemPayload {
	if len(p.Items.Data) == 0 {
		return nil
	}
	return &p.Items.Data[0]
}

type invoicePayload struct {
	ID       string    `json:"id"`
	Customer objectRef `json:"customer"`
	Subtotal int64     `json:"subtotal"`
	// Older API versions report tax as a single amount, newer ones as total_taxes.
	Tax        *int64 `json:"tax"`
	TotalTaxes []struct {
		Amount int64 `json:"amount"`
	} `json:"total_taxes"`
	Total             int64   `json:"total"`
	AmountPaid        int64   `json:"amount_paid"`
	AmountDue         int64   `json:"amount_due"`
	Currency          string  `json:"currency"`
	InvoicePDF        *string `json:"invoice_pdf"`
	HostedInvoiceURL  *string `json:"hosted_invoice_url"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

func (p invoicePayload) taxAmount() int64 {
	if p.Tax != nil {
		return *p.Tax
	}
	var total int64
	for _, t := range p.TotalTaxes {
		total += t.Amount
	}
	return total
}

// paidAt prefers Stripe's recorded payment transition over the processing time.
func (p invoicePayload) paidAt(now time.Time) time.Time {
	if p.StatusTransitions.PaidAt > 0 {
		return time.Unix(p.StatusTransitions.PaidAt, 0).UTC()
	}
	return now
}

func decodeObject(event *stripe.Event, out any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if err := json.Unmarshal(event.Data.Raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode "+string(event.Type)+" payload")
	}
	return nil
}

type checkoutMetadataInput struct {
	TeamID       string `validate:"required,uuid"`
	PlanType     string `validate:"required"`
	BillingCycle string `validate:"required"`
}

type checkoutMetadata struct {
	TeamID       uuid.UUID
	PlanType     enums.PlanType
	BillingCycle enums.BillingCycle
}

var metadataFieldNames = map[string]string{
	"TeamID":       metadataTeamID,
	"PlanType":     metadataPlanType,
	"BillingCycle": metadataBillingCycle,
}

// parseCheckoutMetadata requires teamId, planType and billingCycle on the session.
// A session without them cannot be attributed and fails the delivery.
func parseCheckoutMetadata(validate *validator.Validate, metadata map[string]string) (checkoutMetadata, error) {
	input := checkoutMetadataInput{
		TeamID:       strings.TrimSpace(metadata[metadataTeamID]),
		PlanType:     strings.TrimSpace(metadata[metadataPlanType]),
		BillingCycle: strings.TrimSpace(metadata[metadataBillingCycle]),
	}
	if err := validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		invalid := map[string]string{}
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				invalid[metadataFieldNames[fe.Field()]] = fe.Tag()
			}
		}
		return checkoutMetadata{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session metadata incomplete").
			WithDetails(invalid)
	}

	teamID, err := uuid.Parse(input.TeamID)
	if err != nil {
		return checkoutMetadata{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid teamId metadata")
	}
	planType, err := enums.ParsePlanType(input.PlanType)
	if err != nil {
		return checkoutMetadata{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid planType metadata")
	}
	cycle, err := enums.ParseBillingCycle(input.BillingCycle)
	if err != nil {
		return checkoutMetadata{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billingCycle metadata")
	}
	return checkoutMetadata{TeamID: teamID, PlanType: planType, BillingCycle: cycle}, nil
}
