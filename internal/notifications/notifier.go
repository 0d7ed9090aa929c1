package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox/payloads"
)

// Notice describes a billing outcome the team owner should hear about.
type Notice struct {
	Kind             enums.OutboxEventType
	SourceEventID    string
	TeamID           uuid.UUID
	SubscriptionID   uuid.UUID
	OwnerEmail       string
	StripeInvoiceID  string
	Amount           int64
	Currency         string
	HostedInvoiceURL *string
	OccurredAt       time.Time
}

// Notifier delivers billing notices. Implementations receive the handler's transaction so
// the notice commits or rolls back with the state change.
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, notice Notice) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxNotifier turns notices into outbox rows for the publisher to fan out.
type OutboxNotifier struct {
	outbox outboxEmitter
}

func NewOutboxNotifier(emitter outboxEmitter) (*OutboxNotifier, error) {
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &OutboxNotifier{outbox: emitter}, nil
}

func (n *OutboxNotifier) Notify(ctx context.Context, tx *gorm.DB, notice Notice) error {
	event, err := domainEvent(notice)
	if err != nil {
		return err
	}
	return n.outbox.Emit(ctx, tx, event)
}

func domainEvent(notice Notice) (outbox.DomainEvent, error) {
	event := outbox.DomainEvent{
		EventType:  notice.Kind,
		Source:     notice.SourceEventID,
		Version:    1,
		OccurredAt: notice.OccurredAt,
	}
	switch notice.Kind {
	case enums.EventBillingPaymentFailed:
		event.AggregateType = enums.AggregateInvoice
		event.AggregateID = notice.SubscriptionID
		event.Data = payloads.PaymentFailedEvent{
			TeamID:           notice.TeamID,
			SubscriptionID:   notice.SubscriptionID,
			OwnerEmail:       notice.OwnerEmail,
			StripeInvoiceID:  notice.StripeInvoiceID,
			AmountDue:        notice.Amount,
			Currency:         notice.Currency,
			HostedInvoiceURL: notice.HostedInvoiceURL,
		}
	case enums.EventBillingPaymentRecovered:
		event.AggregateType = enums.AggregateSubscription
		event.AggregateID = notice.SubscriptionID
		event.Data = payloads.PaymentRecoveredEvent{
			TeamID:          notice.TeamID,
			SubscriptionID:  notice.SubscriptionID,
			OwnerEmail:      notice.OwnerEmail,
			StripeInvoiceID: notice.StripeInvoiceID,
			AmountPaid:      notice.Amount,
			Currency:        notice.Currency,
		}
	case enums.EventBillingSubscriptionEnded:
		event.AggregateType = enums.AggregateSubscription
		event.AggregateID = notice.SubscriptionID
		event.Data = payloads.SubscriptionEndedEvent{
			TeamID:         notice.TeamID,
			SubscriptionID: notice.SubscriptionID,
			OwnerEmail:     notice.OwnerEmail,
			CanceledAt:     notice.OccurredAt,
		}
	default:
		return outbox.DomainEvent{}, errors.New("unsupported notice kind " + string(notice.Kind))
	}
	return event, nil
}

// LogNotifier only logs notices. Used when no publisher is deployed.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, _ *gorm.DB, notice Notice) error {
	if n.logg == nil {
		return nil
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"notice":          string(notice.Kind),
		"team_id":         notice.TeamID.String(),
		"subscription_id": notice.SubscriptionID.String(),
		"amount":          notice.Amount,
		"currency":        notice.Currency,
	})
	n.logg.Info(logCtx, "billing notice")
	return nil
}
