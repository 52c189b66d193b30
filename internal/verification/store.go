package verification

import "context"

// ChallengeStore persists live challenges keyed by identity id. Stores hold
// state only; expiry is a wall-clock comparison done by the service on read,
// so restarts and store swaps cannot resurrect a stale challenge.
type ChallengeStore interface {
	// Put stores the challenge, replacing any live challenge for the same
	// identity.
	Put(ctx context.Context, challenge Challenge) error
	// Get returns the live challenge or sentinel.ErrNotFound.
	Get(ctx context.Context, identityID string) (Challenge, error)
	Delete(ctx context.Context, identityID string) error
}
