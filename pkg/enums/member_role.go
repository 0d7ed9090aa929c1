package enums

// MemberRole is a team-level role. Roles do not affect seat counts.
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

var memberRoles = newSet("member role", MemberRoleOwner, MemberRoleAdmin, MemberRoleMember)

func (m MemberRole) String() string { return string(m) }

func (m MemberRole) IsValid() bool { return memberRoles.has(m) }

func ParseMemberRole(value string) (MemberRole, error) { return memberRoles.parse(value) }
