package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// Plan is static reference data for a subscription tier.
type Plan struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type           enums.PlanType  `gorm:"column:type;type:plan_type;not null;uniqueIndex"`
	Name           string          `gorm:"column:name;not null"`
	PricePerMember decimal.Decimal `gorm:"column:price_per_member;type:numeric(12,2);not null;default:0"`
	MaxMembers     int             `gorm:"column:max_members;not null;default:1"`
	MaxQuizzes     int             `gorm:"column:max_quizzes;not null;default:0"`
	Features       pq.StringArray  `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Plan) BeforeCreate(*gorm.DB) error { return assignID(&p.ID) }
