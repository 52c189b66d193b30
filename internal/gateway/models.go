package gateway

import (
	"time"

	"fairdraw/internal/campaign"
	"fairdraw/internal/identity"
)

// RegisterParams carries everything learned about an identity on contact.
type RegisterParams struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ClientHint string `json:"client_hint"`
}

// JoinParams carries a join request; DeepLink, when set, overrides
// CampaignID and ReferrerID.
type JoinParams struct {
	CampaignID string `json:"campaign_id"`
	IdentityID string `json:"identity_id"`
	ReferrerID string `json:"referrer_id"`
	DeepLink   string `json:"deep_link"`
}

// JoinOutcome reports an accepted join.
type JoinOutcome struct {
	CampaignID       string `json:"campaign_id"`
	ReferralCredited bool   `json:"referral_credited"`
	ShareLink        string `json:"share_link"`
}

// CampaignStats aggregates the live state of one campaign.
type CampaignStats struct {
	Campaign      campaign.Campaign `json:"campaign"`
	EntryCount    int               `json:"entry_count"`
	ReferralCount int               `json:"referral_count,omitempty"`
	Drawn         bool              `json:"drawn"`
	Winners       []string          `json:"winners,omitempty"`
	DrawnAt       *time.Time        `json:"drawn_at,omitempty"`
}

// DrawOutcome wraps a draw result; AlreadyDrawn is set when the draw had
// already been recorded and the stored result is returned instead.
type DrawOutcome struct {
	CampaignID   string    `json:"campaign_id"`
	Winners      []string  `json:"winners"`
	EntryCount   int       `json:"entry_count"`
	DrawnAt      time.Time `json:"drawn_at"`
	AlreadyDrawn bool      `json:"already_drawn"`
}

// VerificationInfo is the moderator view of one identity's verification
// state: the profile, its recent attempts, and any fingerprint siblings.
type VerificationInfo struct {
	Identity identity.Identity              `json:"identity"`
	History  []identity.VerificationAttempt `json:"history"`
	Siblings []string                       `json:"siblings,omitempty"`
	Bans     []identity.BanRecord           `json:"bans,omitempty"`
}
