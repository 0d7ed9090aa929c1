package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageRecord snapshots a seat-count change for audit.
type UsageRecord struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;index"`
	TeamID         uuid.UUID `gorm:"column:team_id;type:uuid;not null;index"`
	MemberCount    int       `gorm:"column:member_count;not null"`
	PreviousCount  int       `gorm:"column:previous_count;not null"`
	RecordedAt     time.Time `gorm:"column:recorded_at;not null"`
}

func (u *UsageRecord) BeforeCreate(*gorm.DB) error { return assignID(&u.ID) }
