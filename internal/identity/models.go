package identity

import "time"

// Identity is the durable record for one participant, independent of any
// single campaign. The ID is the stable external identity key handed to us by
// the messaging gateway; we never mint our own.
//
// Invariant: VerifiedAt is set iff Verified is true.
type Identity struct {
	ID                   string     `json:"id"`
	Username             string     `json:"username,omitempty"`
	FirstName            string     `json:"first_name,omitempty"`
	LastName             string     `json:"last_name,omitempty"`
	Verified             bool       `json:"verified"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	VerificationMethod   string     `json:"verification_method,omitempty"`
	VerificationAttempts int        `json:"verification_attempts"`
	Banned               bool       `json:"banned"`
	BanReason            string     `json:"ban_reason,omitempty"`
	BannedAt             *time.Time `json:"banned_at,omitempty"`
	Fingerprint          string     `json:"fingerprint,omitempty"`
	FirstSeen            time.Time  `json:"first_seen"`
	LastSeen             time.Time  `json:"last_seen"`
}

// BanRecord is one append-only moderation ledger entry. The Identity's Banned
// flag is the authoritative current state; this is the audit trail.
type BanRecord struct {
	ID          string    `json:"id"`
	IdentityID  string    `json:"identity_id"`
	ModeratorID string    `json:"moderator_id"`
	Reason      string    `json:"reason"`
	BannedAt    time.Time `json:"banned_at"`
	UnbanAt     time.Time `json:"unban_at"`
}

// VerificationAttempt journals one challenge outcome, success or failure.
type VerificationAttempt struct {
	IdentityID  string    `json:"identity_id"`
	Method      string    `json:"method"`
	Success     bool      `json:"success"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	At          time.Time `json:"at"`
}

// UpsertParams are the display fields refreshed on every interaction.
type UpsertParams struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
}
