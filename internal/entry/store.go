package entry

import "context"

// Store persists entries. The (campaign_id, identity_id) primary key is the
// enforcement mechanism for duplicate joins: the losing concurrent writer
// observes sentinel.ErrConflict from Create.
type Store interface {
	Create(ctx context.Context, e Entry) error
	FindByKey(ctx context.Context, campaignID, identityID string) (Entry, error)
	// Revive flips a soft-deleted entry back to valid with a fresh join time.
	// Returns sentinel.ErrNotFound when no invalid entry exists.
	Revive(ctx context.Context, campaignID, identityID, referredBy string) error
	// Invalidate soft-deletes a valid entry.
	Invalidate(ctx context.Context, campaignID, identityID string) error
	// InvalidateByIdentity soft-deletes every valid entry the identity owns,
	// across all campaigns, returning how many were hit.
	InvalidateByIdentity(ctx context.Context, identityID string) (int, error)
	// IncrementBonus bumps bonus_weight on a currently-valid entry.
	IncrementBonus(ctx context.Context, campaignID, identityID string) error
	ListValid(ctx context.Context, campaignID string) ([]Entry, error)
	CountValid(ctx context.Context, campaignID string) (int, error)
}

// ReferralStore persists referral edges.
type ReferralStore interface {
	// Create inserts the edge, returning sentinel.ErrConflict when the
	// (referrer, referred, campaign) triple already exists.
	Create(ctx context.Context, edge ReferralEdge) error
	CountByReferrer(ctx context.Context, campaignID, referrerID string) (int, error)
}
