package stripewebhook

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/internal/notifications"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
)

func (s *Service) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	var inv invoicePayload
	if err := decodeObject(event, &inv); err != nil {
		return err
	}
	if inv.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id missing")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_invoice_id":  inv.ID,
		"stripe_customer_id": inv.Customer.ID,
	})

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)
		stored, err := billingRepo.FindSubscriptionByCustomerID(ctx, inv.Customer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription by customer")
		}
		if stored == nil {
			s.logg.Error(ctx, "no subscription for paid invoice customer", nil)
			return nil
		}
		ctx := s.logg.WithTeamID(ctx, stored.TeamID.String())

		paidAt := inv.paidAt(s.now())
		record := invoiceRecord(stored, inv, enums.InvoiceStatusPaid)
		record.AmountPaid = inv.AmountPaid
		record.PaidAt = &paidAt
		created, err := billingRepo.CreateInvoice(ctx, record)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record paid invoice")
		}
		if !created {
			s.logg.Info(ctx, "paid invoice already recorded")
		}

		if stored.Status != enums.SubscriptionStatusPastDue {
			return nil
		}
		stored.Status = enums.SubscriptionStatusActive
		if err := billingRepo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate subscription")
		}
		s.logg.Info(ctx, "payment recovered, subscription active")
		return s.notify(ctx, tx, notifications.Notice{
			Kind:            enums.EventBillingPaymentRecovered,
			SourceEventID:   event.ID,
			TeamID:          stored.TeamID,
			SubscriptionID:  stored.ID,
			StripeInvoiceID: inv.ID,
			Amount:          inv.AmountPaid,
			Currency:        record.Currency,
			OccurredAt:      paidAt,
		})
	})
}

func (s *Service) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var inv invoicePayload
	if err := decodeObject(event, &inv); err != nil {
		return err
	}
	if inv.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id missing")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_invoice_id":  inv.ID,
		"stripe_customer_id": inv.Customer.ID,
	})

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		billingRepo := s.billingRepo.WithTx(tx)
		stored, err := billingRepo.FindSubscriptionByCustomerID(ctx, inv.Customer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription by customer")
		}
		if stored == nil {
			s.logg.Warn(ctx, "no subscription for failed invoice customer, ignoring")
			return nil
		}
		ctx := s.logg.WithTeamID(ctx, stored.TeamID.String())

		stored.Status = enums.SubscriptionStatusPastDue
		if err := billingRepo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark subscription past due")
		}

		record := invoiceRecord(stored, inv, enums.InvoiceStatusUncollectible)
		record.AmountPaid = 0
		created, err := billingRepo.CreateInvoice(ctx, record)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed invoice")
		}
		if !created {
			s.logg.Info(ctx, "failed invoice already recorded")
		}

		s.logg.Warn(ctx, "invoice payment failed, subscription past due")
		return s.notify(ctx, tx, notifications.Notice{
			Kind:             enums.EventBillingPaymentFailed,
			SourceEventID:    event.ID,
			TeamID:           stored.TeamID,
			SubscriptionID:   stored.ID,
			StripeInvoiceID:  inv.ID,
			Amount:           inv.AmountDue,
			Currency:         record.Currency,
			HostedInvoiceURL: inv.HostedInvoiceURL,
			OccurredAt:       s.now(),
		})
	})
}

func invoiceRecord(sub *models.Subscription, inv invoicePayload, status enums.InvoiceStatus) *models.Invoice {
	return &models.Invoice{
		SubscriptionID:   sub.ID,
		TeamID:           sub.TeamID,
		StripeInvoiceID:  inv.ID,
		Status:           status,
		Subtotal:         inv.Subtotal,
		Tax:              inv.taxAmount(),
		Total:            inv.Total,
		AmountDue:        inv.AmountDue,
		Currency:         strings.ToLower(inv.Currency),
		InvoicePDF:       inv.InvoicePDF,
		HostedInvoiceURL: inv.HostedInvoiceURL,
	}
}
