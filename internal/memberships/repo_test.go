package memberships

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/billing-webhooks/pkg/db/dbtest"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

func TestCountActiveMembersIgnoresInvitedAndRemoved(t *testing.T) {
	conn := dbtest.Open(t)
	team := dbtest.SeedTeam(t, conn, 3)
	repo := NewRepository(conn)
	ctx := context.Background()

	count, err := repo.CountActiveMembers(ctx, team.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 active members, got %d", count)
	}

	member, err := repo.CreateMembership(ctx, team.ID, uuid.New(), enums.MemberRoleMember, enums.MemberStatusActive)
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}
	if err := repo.UpdateStatus(ctx, member.ID, enums.MemberStatusRemoved); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	count, err = repo.CountActiveMembers(ctx, team.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected removed member to be excluded, got %d", count)
	}
}

func TestFindTeam(t *testing.T) {
	conn := dbtest.Open(t)
	team := dbtest.SeedTeam(t, conn, 1)
	repo := NewRepository(conn)

	found, err := repo.FindTeam(context.Background(), team.ID)
	if err != nil {
		t.Fatalf("find team: %v", err)
	}
	if found == nil || found.OwnerEmail != "owner@acme.test" {
		t.Fatalf("unexpected team: %+v", found)
	}

	missing, err := repo.FindTeam(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("find missing team: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown team")
	}
}

func TestCreateMembershipRejectsUnknownRole(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	if _, err := repo.CreateMembership(context.Background(), uuid.New(), uuid.New(), enums.MemberRole("GUEST"), enums.MemberStatusActive); err == nil {
		t.Fatal("expected invalid role error")
	}
}
