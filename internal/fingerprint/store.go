package fingerprint

import (
	"context"
	"time"
)

// Store persists the origin fingerprint index.
type Store interface {
	// Record associates identityID with fingerprint. New pairs grow the
	// member count; already-known pairs only refresh last_seen. Memberships
	// never shrink.
	Record(ctx context.Context, identityID, fingerprint string, now time.Time) error
	// CurrentOf returns the fingerprint the identity presented most recently,
	// or sentinel.ErrNotFound if it has never been recorded.
	CurrentOf(ctx context.Context, identityID string) (string, error)
	// Members returns every identity that has carried the fingerprint.
	Members(ctx context.Context, fingerprint string) ([]string, error)
	// Suspicious returns fingerprints with member_count >= threshold, largest
	// clusters first.
	Suspicious(ctx context.Context, threshold int) ([]Fingerprint, error)
}
