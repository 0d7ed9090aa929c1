package enums

// MemberStatus captures a team member's seat state. Only ACTIVE members are billed.
type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "ACTIVE"
	MemberStatusInvited MemberStatus = "INVITED"
	MemberStatusRemoved MemberStatus = "REMOVED"
)

var memberStatuses = newSet("member status", MemberStatusActive, MemberStatusInvited, MemberStatusRemoved)

func (s MemberStatus) IsValid() bool { return memberStatuses.has(s) }

func ParseMemberStatus(value string) (MemberStatus, error) { return memberStatuses.parse(value) }
