package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

// SeedPlans inserts the same plan tiers the migrations seed and returns them by type.
func SeedPlans(t testing.TB, conn *gorm.DB) map[enums.PlanType]models.Plan {
	t.Helper()
	plans := []models.Plan{
		{Type: enums.PlanTypeFree, Name: "Free", PricePerMember: decimal.Zero, MaxMembers: 1, MaxQuizzes: 3},
		{Type: enums.PlanTypePro, Name: "Pro", PricePerMember: decimal.RequireFromString("8.00"), MaxMembers: 25, MaxQuizzes: 100},
		{Type: enums.PlanTypePremium, Name: "Premium", PricePerMember: decimal.RequireFromString("15.00"), MaxMembers: 500, MaxQuizzes: -1},
	}
	out := make(map[enums.PlanType]models.Plan, len(plans))
	for i := range plans {
		if err := conn.Create(&plans[i]).Error; err != nil {
			t.Fatalf("seed plan %s: %v", plans[i].Type, err)
		}
		out[plans[i].Type] = plans[i]
	}
	return out
}

// SeedTeam creates a team with the given number of active members plus one invited member
// that must never count as a seat.
func SeedTeam(t testing.TB, conn *gorm.DB, activeMembers int) models.Team {
	t.Helper()
	team := models.Team{Name: "Acme", OwnerEmail: "owner@acme.test"}
	if err := conn.Create(&team).Error; err != nil {
		t.Fatalf("seed team: %v", err)
	}
	for i := 0; i < activeMembers; i++ {
		role := enums.MemberRoleMember
		if i == 0 {
			role = enums.MemberRoleOwner
		}
		AddMember(t, conn, team.ID, role, enums.MemberStatusActive)
	}
	AddMember(t, conn, team.ID, enums.MemberRoleMember, enums.MemberStatusInvited)
	return team
}

// AddMember inserts a single membership row.
func AddMember(t testing.TB, conn *gorm.DB, teamID uuid.UUID, role enums.MemberRole, status enums.MemberStatus) models.TeamMember {
	t.Helper()
	member := models.TeamMember{TeamID: teamID, UserID: uuid.New(), Role: role, Status: status}
	if err := conn.Create(&member).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return member
}

// MustCount returns the row count of table or fails the test.
func MustCount(t testing.TB, conn *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := conn.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
