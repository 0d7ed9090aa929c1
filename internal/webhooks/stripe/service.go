package stripewebhook

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/internal/billing"
	"github.com/angelmondragon/billing-webhooks/internal/idempotency"
	"github.com/angelmondragon/billing-webhooks/internal/memberships"
	"github.com/angelmondragon/billing-webhooks/internal/notifications"
	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
)

const (
	defaultRetrieveAttempts = 3
	defaultRetrieveBackoff  = time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventGuard interface {
	Ensure(ctx context.Context, eventID, eventType string, handler idempotency.Handler) error
}

type handlerFunc func(ctx context.Context, event *stripe.Event) error

type ServiceParams struct {
	Logger           *logger.Logger
	Guard            eventGuard
	TxRunner         txRunner
	BillingRepo      billing.Repository
	Memberships      *memberships.Repository
	Provider         ProviderClient
	Notifier         notifications.Notifier
	Metrics          *metrics.WebhookMetrics
	Validator        *validator.Validate
	RetrieveAttempts int
	RetrieveBackoff  time.Duration
	Sleep            func(ctx context.Context, d time.Duration) error
	Now              func() time.Time
}

// Service reconciles local subscription state from Stripe webhook events.
type Service struct {
	logg             *logger.Logger
	guard            eventGuard
	txRunner         txRunner
	billingRepo      billing.Repository
	memberships      *memberships.Repository
	provider         ProviderClient
	notifier         notifications.Notifier
	metrics          *metrics.WebhookMetrics
	validate         *validator.Validate
	retrieveAttempts int
	retrieveBackoff  time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
	now              func() time.Time
	handlers         map[stripe.EventType]handlerFunc
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.BillingRepo == nil {
		return nil, errors.New("billing repo required")
	}
	if params.Memberships == nil {
		return nil, errors.New("memberships repo required")
	}
	if params.Provider == nil {
		return nil, errors.New("stripe provider client required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier required")
	}

	s := &Service{
		logg:             params.Logger,
		guard:            params.Guard,
		txRunner:         params.TxRunner,
		billingRepo:      params.BillingRepo,
		memberships:      params.Memberships,
		provider:         params.Provider,
		notifier:         params.Notifier,
		metrics:          params.Metrics,
		validate:         params.Validator,
		retrieveAttempts: params.RetrieveAttempts,
		retrieveBackoff:  params.RetrieveBackoff,
		sleep:            params.Sleep,
		now:              params.Now,
	}
	if s.validate == nil {
		s.validate = validator.New()
	}
	if s.retrieveAttempts <= 0 {
		s.retrieveAttempts = defaultRetrieveAttempts
	}
	if s.retrieveBackoff <= 0 {
		s.retrieveBackoff = defaultRetrieveBackoff
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	s.handlers = map[stripe.EventType]handlerFunc{
		stripe.EventTypeCheckoutSessionCompleted:    s.handleCheckoutCompleted,
		stripe.EventTypeCustomerSubscriptionUpdated: s.handleSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted: s.handleSubscriptionDeleted,
		stripe.EventTypeInvoicePaid:                 s.handleInvoicePaid,
		stripe.EventTypeInvoicePaymentFailed:        s.handleInvoicePaymentFailed,
	}
	return s, nil
}

// Process runs the event through the idempotency guard. Duplicates return nil; a handler
// failure is recorded against the event ID and returned so the delivery is retried.
func (s *Service) Process(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	return s.guard.Ensure(ctx, event.ID, string(event.Type), func(ctx context.Context) error {
		return s.HandleEvent(ctx, event)
	})
}

// HandleEvent dispatches on event type. Types without a handler are logged and acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	handler, ok := s.handlers[event.Type]
	if !ok {
		s.logg.Info(ctx, "unhandled stripe event type")
		return nil
	}
	return handler(ctx, event)
}

// Handles reports whether eventType has a reconciler.
func (s *Service) Handles(eventType stripe.EventType) bool {
	_, ok := s.handlers[eventType]
	return ok
}
