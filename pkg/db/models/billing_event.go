package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// BillingEvent is the durable ledger row for a provider webhook event.
type BillingEvent struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderEventID string                  `gorm:"column:provider_event_id;not null;uniqueIndex"`
	EventType       string                  `gorm:"column:event_type;not null"`
	State           enums.BillingEventState `gorm:"column:state;type:billing_event_state;not null;default:'processing'"`
	Processed       bool                    `gorm:"column:processed;not null;default:false"`
	ProcessedAt     *time.Time              `gorm:"column:processed_at"`
	Error           *string                 `gorm:"column:error"`
	Attempts        int                     `gorm:"column:attempts;not null;default:0"`
	ClaimedAt       *time.Time              `gorm:"column:claimed_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (BillingEvent) TableName() string { return "billing_events" }

func (e *BillingEvent) BeforeCreate(*gorm.DB) error { return assignID(&e.ID) }
