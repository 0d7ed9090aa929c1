package billingevents

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/billing-webhooks/pkg/db"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// ClaimOutcome reports what happened when a process tried to take ownership of an event.
type ClaimOutcome int

const (
	// ClaimAcquired means the caller owns the event and must run its handler.
	ClaimAcquired ClaimOutcome = iota
	// ClaimAlreadyProcessed means another delivery finished the event first.
	ClaimAlreadyProcessed
	// ClaimInFlight means another delivery holds a live claim on the event.
	ClaimInFlight
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimAcquired:
		return "acquired"
	case ClaimAlreadyProcessed:
		return "already_processed"
	case ClaimInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

const staleClaimMessage = "claim lease expired before completion"

// Repository is the durable ledger of provider webhook events.
type Repository interface {
	FindByProviderEventID(ctx context.Context, providerEventID string) (*models.BillingEvent, error)
	Claim(ctx context.Context, providerEventID, eventType string, now time.Time, lease time.Duration) (ClaimOutcome, error)
	MarkProcessed(ctx context.Context, providerEventID, eventType string, at time.Time) error
	MarkFailed(ctx context.Context, providerEventID, eventType, message string, at time.Time) error
	ExpireStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an event ledger bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByProviderEventID(ctx context.Context, providerEventID string) (*models.BillingEvent, error) {
	var event models.BillingEvent
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// Claim inserts a processing row guarded by the unique provider_event_id. When the row
// already exists it is taken over only if the previous attempt failed or its lease ran out.
func (r *repository) Claim(ctx context.Context, providerEventID, eventType string, now time.Time, lease time.Duration) (ClaimOutcome, error) {
	claimedAt := now
	row := models.BillingEvent{
		ProviderEventID: providerEventID,
		EventType:       eventType,
		State:           enums.BillingEventProcessing,
		Attempts:        1,
		ClaimedAt:       &claimedAt,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil && !db.IsUniqueViolation(res.Error, "") {
		return ClaimInFlight, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return ClaimAcquired, nil
	}

	res = r.db.WithContext(ctx).
		Model(&models.BillingEvent{}).
		Where("provider_event_id = ? AND processed = ?", providerEventID, false).
		Where("state = ? OR (state = ? AND (claimed_at IS NULL OR claimed_at < ?))",
			enums.BillingEventFailed, enums.BillingEventProcessing, now.Add(-lease)).
		Updates(map[string]any{
			"state":      enums.BillingEventProcessing,
			"event_type": eventType,
			"claimed_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return ClaimInFlight, res.Error
	}
	if res.RowsAffected == 1 {
		return ClaimAcquired, nil
	}

	existing, err := r.FindByProviderEventID(ctx, providerEventID)
	if err != nil {
		return ClaimInFlight, err
	}
	if existing != nil && existing.Processed {
		return ClaimAlreadyProcessed, nil
	}
	return ClaimInFlight, nil
}

func (r *repository) MarkProcessed(ctx context.Context, providerEventID, eventType string, at time.Time) error {
	processedAt := at
	row := models.BillingEvent{
		ProviderEventID: providerEventID,
		EventType:       eventType,
		State:           enums.BillingEventProcessed,
		Processed:       true,
		ProcessedAt:     &processedAt,
		Attempts:        1,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_event_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"event_type":   eventType,
				"state":        enums.BillingEventProcessed,
				"processed":    true,
				"processed_at": at,
				"error":        nil,
				"updated_at":   at,
			}),
		}).
		Create(&row).Error
}

func (r *repository) MarkFailed(ctx context.Context, providerEventID, eventType, message string, at time.Time) error {
	msg := message
	row := models.BillingEvent{
		ProviderEventID: providerEventID,
		EventType:       eventType,
		State:           enums.BillingEventFailed,
		Error:           &msg,
		Attempts:        1,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_event_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"event_type": eventType,
				"state":      enums.BillingEventFailed,
				"processed":  false,
				"error":      message,
				"updated_at": at,
			}),
		}).
		Create(&row).Error
}

// ExpireStaleClaims marks abandoned processing rows as failed so the next delivery can retry them.
func (r *repository) ExpireStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.BillingEvent{}).
		Where("state = ? AND processed = ? AND claimed_at < ?", enums.BillingEventProcessing, false, claimedBefore).
		Updates(map[string]any{
			"state": enums.BillingEventFailed,
			"error": staleClaimMessage,
		})
	return res.RowsAffected, res.Error
}
