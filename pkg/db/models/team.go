package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// Team owns a subscription; its active members are the billed seats.
type Team struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string    `gorm:"column:name;not null"`
	OwnerEmail string    `gorm:"column:owner_email;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Team) BeforeCreate(*gorm.DB) error { return assignID(&t.ID) }

// TeamMember links a user to a team.
type TeamMember struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TeamID    uuid.UUID          `gorm:"column:team_id;type:uuid;not null;index"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	Role      enums.MemberRole   `gorm:"column:role;type:member_role;not null;default:'MEMBER'"`
	Status    enums.MemberStatus `gorm:"column:status;type:member_status;not null;default:'ACTIVE'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *TeamMember) BeforeCreate(*gorm.DB) error { return assignID(&m.ID) }
