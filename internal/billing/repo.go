package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// Repository handles subscription, plan, invoice and usage persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSubscriptionByTeamID(ctx context.Context, teamID uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	FindSubscriptionByCustomerID(ctx context.Context, stripeCustomerID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	ListSubscriptionsByStatus(ctx context.Context, statuses []enums.SubscriptionStatus, after uuid.UUID, limit int) ([]models.Subscription, error)
	FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.Plan, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) (bool, error)
	ListInvoicesByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Invoice, error)
	CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error
	ListUsageRecords(ctx context.Context, subscriptionID uuid.UUID) ([]models.UsageRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSubscriptionByTeamID(ctx context.Context, teamID uuid.UUID) (*models.Subscription, error) {
	return r.findSubscription(ctx, "team_id = ?", teamID)
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	return r.findSubscription(ctx, "stripe_subscription_id = ?", stripeSubscriptionID)
}

// FindSubscriptionByCustomerID resolves the most recently touched subscription for a Stripe customer.
func (r *repository) FindSubscriptionByCustomerID(ctx context.Context, stripeCustomerID string) (*models.Subscription, error) {
	if stripeCustomerID == "" {
		return nil, nil
	}
	return r.findSubscription(ctx, "stripe_customer_id = ?", stripeCustomerID)
}

func (r *repository) findSubscription(ctx context.Context, query string, arg any) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("updated_at DESC").
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription inserts or overwrites the team's subscription row and reloads it,
// so the caller sees the persisted ID either way.
func (r *repository) UpsertSubscription(ctx context.Context, subscription *models.Subscription) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_id",
				"stripe_subscription_id",
				"stripe_customer_id",
				"stripe_price_id",
				"stripe_product_id",
				"status",
				"billing_cycle",
				"member_count",
				"price_per_member",
				"current_period_start",
				"current_period_end",
				"cancel_at_period_end",
				"canceled_at",
				"updated_at",
			}),
		}).
		Create(subscription).Error
	if err != nil {
		return err
	}
	var stored models.Subscription
	if err := r.db.WithContext(ctx).
		Where("team_id = ?", subscription.TeamID).
		First(&stored).Error; err != nil {
		return err
	}
	*subscription = stored
	return nil
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

// ListSubscriptionsByStatus returns up to limit subscriptions in the given states with an
// id greater than after, ordered by id. Pass uuid.Nil for the first page and the last id
// seen for the next one.
func (r *repository) ListSubscriptionsByStatus(ctx context.Context, statuses []enums.SubscriptionStatus, after uuid.UUID, limit int) ([]models.Subscription, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id ASC")
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var subs []models.Subscription
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) FindPlanByType(ctx context.Context, planType enums.PlanType) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("type = ?", planType).
		First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// CreateInvoice appends an invoice record. It reports false when a record for the same
// Stripe invoice and status already exists.
func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_invoice_id"}, {Name: "status"}},
			DoNothing: true,
		}).
		Create(invoice)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListInvoicesByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListUsageRecords(ctx context.Context, subscriptionID uuid.UUID) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("recorded_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
