package fingerprint

import "time"

// Fingerprint is one derived origin cluster. MemberCount equals the number of
// distinct identities that have ever presented this fingerprint; memberships
// are additive and never decremented.
type Fingerprint struct {
	Value       string    `json:"value"`
	MemberCount int       `json:"member_count"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// SuspiciousCluster resolves one over-threshold fingerprint to its members
// for moderation tooling.
type SuspiciousCluster struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Members     []string    `json:"members"`
}
