package entry

import "time"

// Entry is an identity's eligibility record within one campaign, keyed by
// (campaign id, identity id). Entries are soft-deleted, never removed, so the
// audit history survives moderation.
//
// Invariant: effective weight = 1 + BonusWeight.
type Entry struct {
	CampaignID  string
	IdentityID  string
	JoinedAt    time.Time
	Valid       bool
	ReferredBy  string
	BonusWeight int
}

// Weight is the entry's effective weight in the draw.
func (e Entry) Weight() int { return 1 + e.BonusWeight }

// ReferralEdge records that referrer brought referred into a campaign. The
// (referrer, referred, campaign) triple is unique; a referrer is never
// credited twice for the same person in the same campaign.
type ReferralEdge struct {
	ReferrerID string
	ReferredID string
	CampaignID string
	CreatedAt  time.Time
}

// WeightedEntry is the view the winner selector draws from.
type WeightedEntry struct {
	IdentityID string
	Weight     int
}
