package audit

import "time"

// Event records one engine action for the operational trail. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         string
	Action     string
	IdentityID string
	ActorID    string
	CampaignID string
	Detail     string
	Timestamp  time.Time
}

// Actions emitted by the engine.
const (
	ActionIdentityBanned      = "identity.banned"
	ActionIdentityUnbanned    = "identity.unbanned"
	ActionChallengeIssued     = "verification.challenge_issued"
	ActionVerificationPassed  = "verification.passed"
	ActionVerificationFailed  = "verification.failed"
	ActionCampaignCreated     = "campaign.created"
	ActionCampaignClosed      = "campaign.closed"
	ActionEntryJoined         = "entry.joined"
	ActionEntryRemoved        = "entry.removed"
	ActionReferralCredited    = "referral.credited"
	ActionDrawRecorded        = "draw.recorded"
)
