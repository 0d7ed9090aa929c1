package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/billing-webhooks/internal/billingevents"
	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
)

const (
	defaultRetention  = 24 * time.Hour
	defaultClaimLease = 5 * time.Minute
)

// Handler performs the side effects for a single event.
type Handler func(ctx context.Context) error

// GuardParams wires the idempotency guard.
type GuardParams struct {
	Logger     *logger.Logger
	Repository billingevents.Repository
	Cache      Cache
	Metrics    *metrics.WebhookMetrics
	ClaimLease time.Duration
	Now        func() time.Time
}

// Guard runs each provider event's handler at most once to successful completion.
type Guard struct {
	logg    *logger.Logger
	repo    billingevents.Repository
	cache   Cache
	metrics *metrics.WebhookMetrics
	lease   time.Duration
	now     func() time.Time
}

// NewGuard validates the dependencies and builds a guard.
func NewGuard(params GuardParams) (*Guard, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Repository == nil {
		return nil, errors.New("billing event repository required")
	}
	if params.Cache == nil {
		return nil, errors.New("processed event cache required")
	}
	lease := params.ClaimLease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Guard{
		logg:    params.Logger,
		repo:    params.Repository,
		cache:   params.Cache,
		metrics: params.Metrics,
		lease:   lease,
		now:     now,
	}, nil
}

// Ensure runs handler unless eventID already completed. Duplicates return nil without
// invoking the handler. A handler error is recorded against the event and returned
// unchanged so the caller answers non-2xx and the provider redelivers.
func (g *Guard) Ensure(ctx context.Context, eventID, eventType string, handler Handler) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if handler == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "event handler is required")
	}
	ctx = g.logg.WithEvent(ctx, eventID, eventType)

	if g.cache.Seen(ctx, eventID) {
		g.logg.Info(ctx, "event already processed (cache)")
		g.metrics.RecordOutcome(eventType, metrics.OutcomeDuplicateCache)
		return nil
	}

	existing, err := g.repo.FindByProviderEventID(ctx, eventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing event")
	}
	if existing != nil && existing.Processed {
		g.cache.Remember(ctx, eventID, g.now())
		g.logg.Info(ctx, "event already processed (store)")
		g.metrics.RecordOutcome(eventType, metrics.OutcomeDuplicateStore)
		return nil
	}

	outcome, err := g.repo.Claim(ctx, eventID, eventType, g.now(), g.lease)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim billing event")
	}
	switch outcome {
	case billingevents.ClaimAlreadyProcessed:
		g.cache.Remember(ctx, eventID, g.now())
		g.logg.Info(ctx, "event already processed (claim)")
		g.metrics.RecordOutcome(eventType, metrics.OutcomeDuplicateStore)
		return nil
	case billingevents.ClaimInFlight:
		g.logg.Warn(ctx, "event is being processed by another delivery")
		g.metrics.RecordOutcome(eventType, metrics.OutcomeInFlight)
		return pkgerrors.New(pkgerrors.CodeIdempotency, "event is already being processed").
			WithDetails(map[string]any{"eventId": eventID})
	}

	start := time.Now()
	handlerErr := g.run(ctx, handler)
	g.metrics.ObserveHandler(eventType, time.Since(start))

	// The outcome is recorded even when the caller has gone away mid-handler.
	ledgerCtx := context.WithoutCancel(ctx)
	if handlerErr != nil {
		if markErr := g.repo.MarkFailed(ledgerCtx, eventID, eventType, handlerErr.Error(), g.now()); markErr != nil {
			g.logg.Error(ctx, "failed to record event failure", markErr)
		}
		g.logg.Error(ctx, "event handler failed", handlerErr)
		g.metrics.RecordOutcome(eventType, metrics.OutcomeFailed)
		return handlerErr
	}

	processedAt := g.now()
	if err := g.repo.MarkProcessed(ledgerCtx, eventID, eventType, processedAt); err != nil {
		g.metrics.RecordOutcome(eventType, metrics.OutcomeFailed)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark billing event processed")
	}
	g.cache.Remember(ledgerCtx, eventID, processedAt)
	g.logg.Info(ctx, "event processed")
	g.metrics.RecordOutcome(eventType, metrics.OutcomeProcessed)
	return nil
}

func (g *Guard) run(ctx context.Context, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("event handler panicked: %v", r))
		}
	}()
	return handler(ctx)
}
