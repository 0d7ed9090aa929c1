package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
	"github.com/angelmondragon/billing-webhooks/pkg/metrics"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox"
	"github.com/angelmondragon/billing-webhooks/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         eventResolver
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
	PublisherFactory publisherFactory
	Now              func() time.Time
}

// Service drains billing notices from the outbox onto Pub/Sub. Each batch runs in one
// transaction so rows locked with SKIP LOCKED are marked before another publisher sees them.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	resolver     eventResolver
	dlq          dlqRepository
	metrics      *metrics.OutboxMetrics
	publisherFor publisherFactory
	batchSize    int
	maxAttempts  int
	poll         time.Duration
	now          func() time.Time
	jitter       *rand.Rand
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config.Outbox
	s := &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		resolver:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		publisherFor: params.PublisherFactory,
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		poll:         defaultPoll,
		now:          params.Now,
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.PollIntervalMS > 0 {
		s.poll = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	if s.publisherFor == nil {
		s.publisherFor = gcpPublisherFactory(params.PubSub)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// Run polls until ctx is canceled. Idle polls wait one interval; failed batches back off
// exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}
	s.reportBacklog(ctx)

	wait := s.poll
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		busy, err := s.drainBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = nextBackoff(wait, s.poll, maxBackoff)
		case busy:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}

		if err := s.sleep(ctx, wait+s.jitterDelay()); err != nil {
			return err
		}
	}
}

func (s *Service) checkDependencies(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

func (s *Service) reportBacklog(ctx context.Context) {
	counts, err := s.dlq.CountByReason(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "unable to count dead-lettered notices")
		return
	}
	fields := make(map[string]any, len(counts))
	for reason, rows := range counts {
		s.metrics.SetDLQBacklog(string(reason), rows)
		fields["dlq_"+string(reason)] = rows
	}
	if len(fields) > 0 {
		s.logg.Warn(s.logg.WithFields(ctx, fields), "dead-lettered billing notices awaiting review")
	}
}

// drainBatch publishes one batch and reports whether any rows were found.
func (s *Service) drainBatch(ctx context.Context) (bool, error) {
	found := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		found = len(rows) > 0
		for _, row := range rows {
			if err := s.deliver(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

// deliver publishes a single row and records the outcome. Only bookkeeping failures are
// returned; publish failures end up on the row or in the DLQ.
func (s *Service) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	ctx = s.logg.WithFields(ctx, rowFields(row))

	resolved, err := s.resolver.Resolve(row)
	if err != nil {
		return s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"topic":           resolved.Descriptor.Topic,
		"notice_id":       resolved.Envelope.EventID,
		"stripe_event_id": resolved.Envelope.Source,
	})

	pub := s.publisherFor(resolved.Descriptor.Topic)
	if pub == nil {
		return s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonUnroutable,
			fmt.Errorf("no publisher for topic %s", resolved.Descriptor.Topic))
	}

	err = s.publish(ctx, pub, row, resolved)
	switch {
	case err == nil:
		if err := s.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.metrics.RecordDelivered(string(row.EventType))
		s.logg.Info(ctx, "billing notice published")
		return nil
	case registry.IsNonRetryable(err):
		return s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	case row.AttemptCount+1 >= s.maxAttempts:
		return s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err))
	default:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"error":         err.Error(),
			"attempt_count": row.AttemptCount + 1,
		}), "billing notice publish failed")
		if err := s.repo.MarkFailedTx(tx, row.ID, err); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
		s.metrics.RecordRetry(string(row.EventType))
		return nil
	}
}

func (s *Service) publish(ctx context.Context, pub topicPublisher, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
	}
	if teamID := resolved.TeamID(); teamID != "" {
		attrs["team_id"] = teamID
	}
	if resolved.Envelope.Source != "" {
		attrs["stripe_event_id"] = resolved.Envelope.Source
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{Data: row.Payload, Attributes: attrs})
	if result == nil {
		return registry.NewNonRetryableError(errors.New("publisher returned no result"))
	}
	_, err := result.Get(ctx)
	return err
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "billing notice moved to dlq")

	if err := s.dlq.InsertTx(tx, outbox.NewDLQEntry(row, reason, cause, s.now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	s.metrics.RecordDeadLetter(string(row.EventType), string(reason))
	return nil
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) jitterDelay() time.Duration {
	return time.Duration(s.jitter.Int63n(int64(jitterWindow)))
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current < base {
		current = base
	}
	if next := current * 2; next < ceiling {
		return next
	}
	return ceiling
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
