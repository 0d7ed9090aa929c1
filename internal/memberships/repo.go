package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// Repository exposes team and membership reads used for seat billing.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository scoped to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindTeam returns the team or nil when it does not exist.
func (r *Repository) FindTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	var team models.Team
	err := r.db.WithContext(ctx).
		Where("id = ?", teamID).
		First(&team).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &team, nil
}

// CountActiveMembers returns the number of billable seats: members whose status is ACTIVE.
// Invited and removed members are not billed.
func (r *Repository) CountActiveMembers(ctx context.Context, teamID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ? AND status = ?", teamID, enums.MemberStatusActive).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateMembership persists a new membership record.
func (r *Repository) CreateMembership(ctx context.Context, teamID, userID uuid.UUID, role enums.MemberRole, status enums.MemberStatus) (*models.TeamMember, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid member role %q", role)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid member status %q", status)
	}

	membership := &models.TeamMember{
		TeamID: teamID,
		UserID: userID,
		Role:   role,
		Status: status,
	}
	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

// UpdateStatus moves a membership between ACTIVE, INVITED and REMOVED.
func (r *Repository) UpdateStatus(ctx context.Context, membershipID uuid.UUID, status enums.MemberStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid member status %q", status)
	}
	return r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("id = ?", membershipID).
		Update("status", status).Error
}
