package identity

import (
	"context"
	"time"
)

// Store persists Identity records. Stores are interface-driven so the service
// can run against memory in tests and Postgres in production without
// rewiring business code. Stores are pure I/O; state-machine decisions live
// in the service.
type Store interface {
	// Upsert creates the identity on first sight, otherwise refreshes the
	// display fields and last_seen. Returns the stored record.
	Upsert(ctx context.Context, p UpsertParams, now time.Time) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	// MarkVerified flips the verified flag atomically. Returns
	// sentinel.ErrInvalidState when the identity is already verified and
	// sentinel.ErrNotFound when it is unknown.
	MarkVerified(ctx context.Context, id, method string, at time.Time) error
	// SetBanned / ClearBan mutate only the current ban state; the ledger is
	// appended separately.
	SetBanned(ctx context.Context, id, reason string, at time.Time) error
	ClearBan(ctx context.Context, id string) error
	SetFingerprint(ctx context.Context, id, fingerprint string) error
	// Touch refreshes last_seen only. Unknown identities are a no-op.
	Touch(ctx context.Context, id string, at time.Time) error
	IncrementAttempts(ctx context.Context, id string) error
	ListBanned(ctx context.Context) ([]Identity, error)
}

// BanStore is the append-only moderation ledger.
type BanStore interface {
	Append(ctx context.Context, record BanRecord) error
	ListByIdentity(ctx context.Context, identityID string) ([]BanRecord, error)
}

// HistoryStore is the append-only verification attempt journal.
type HistoryStore interface {
	Append(ctx context.Context, attempt VerificationAttempt) error
	// ListByIdentity returns the newest attempts first, capped at limit.
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]VerificationAttempt, error)
}
