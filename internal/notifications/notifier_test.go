package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox/payloads"
)

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func TestOutboxNotifierPaymentFailed(t *testing.T) {
	emitter := &recordingEmitter{}
	notifier, err := NewOutboxNotifier(emitter)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	subID := uuid.New()
	err = notifier.Notify(context.Background(), nil, Notice{
		Kind:            enums.EventBillingPaymentFailed,
		SourceEventID:   "evt_1",
		TeamID:          uuid.New(),
		SubscriptionID:  subID,
		StripeInvoiceID: "in_1",
		Amount:          5000,
		Currency:        "jpy",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.AggregateType != enums.AggregateInvoice || event.AggregateID != subID {
		t.Fatalf("unexpected aggregate %s/%s", event.AggregateType, event.AggregateID)
	}
	data, ok := event.Data.(payloads.PaymentFailedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Data)
	}
	if data.AmountDue != 5000 || data.Currency != "jpy" {
		t.Fatalf("unexpected payload %+v", data)
	}
}

func TestOutboxNotifierRejectsUnknownKind(t *testing.T) {
	notifier, err := NewOutboxNotifier(&recordingEmitter{})
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := notifier.Notify(context.Background(), nil, Notice{Kind: "billing.other"}); err == nil {
		t.Fatal("expected unsupported kind error")
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	if err := NewLogNotifier(logger.Nop()).Notify(context.Background(), nil, Notice{Kind: enums.EventBillingSubscriptionEnded}); err != nil {
		t.Fatalf("notify: %v", err)
	}
}
