// Package registry routes billing notices from outbox rows to Pub/Sub topics.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox/payloads"
)

// EventDescriptor binds a notice type to the aggregate it must reference and the topic
// it is published on.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row decoded into its typed notice.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// TeamID returns the team the notice addresses, or the empty string.
func (r *ResolvedEvent) TeamID() string {
	scoped, ok := r.Payload.(payloads.TeamScoped)
	if !ok {
		return ""
	}
	return scoped.Team().String()
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err so the publisher dead-letters instead of retrying.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

// EventRegistry resolves outbox rows for the publisher.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every billing notice to the configured notification topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.NotificationTopic
	if topic == "" {
		return nil, errors.New("notification topic is required")
	}
	descriptors := []EventDescriptor{
		notice[payloads.PaymentFailedEvent](enums.EventBillingPaymentFailed, enums.AggregateInvoice, topic),
		notice[payloads.PaymentRecoveredEvent](enums.EventBillingPaymentRecovered, enums.AggregateSubscription, topic),
		notice[payloads.SubscriptionEndedEvent](enums.EventBillingSubscriptionEnded, enums.AggregateSubscription, topic),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

func notice[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// Resolve validates row against its descriptor and decodes the notice body. Every
// failure is non-retryable.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if desc.AggregateType != row.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("%s must reference a %s aggregate, got %s", row.EventType, desc.AggregateType, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", row.EventType, err))
	}
	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s notice: %w", row.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
