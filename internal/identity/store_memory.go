package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"fairdraw/pkg/platform/sentinel"
)

// MemoryStore keeps identities in a mutex-guarded map. Constraint checks
// (verified-once) happen under the lock so concurrent callers observe the
// same outcomes a SQL conditional update would give them.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{identities: make(map[string]Identity)}
}

func (s *MemoryStore) Upsert(ctx context.Context, p UpsertParams, now time.Time) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[p.ID]
	if !ok {
		ident = Identity{ID: p.ID, FirstSeen: now}
	}
	ident.Username = p.Username
	ident.FirstName = p.FirstName
	ident.LastName = p.LastName
	ident.LastSeen = now
	s.identities[p.ID] = ident
	return ident, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[id]
	if !ok {
		return Identity{}, sentinel.ErrNotFound
	}
	return ident, nil
}

func (s *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return nil
	}
	ident.LastSeen = at
	s.identities[id] = ident
	return nil
}

func (s *MemoryStore) MarkVerified(ctx context.Context, id, method string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if ident.Verified {
		return sentinel.ErrInvalidState
	}
	ident.Verified = true
	ident.VerifiedAt = &at
	ident.VerificationMethod = method
	s.identities[id] = ident
	return nil
}

func (s *MemoryStore) SetBanned(ctx context.Context, id, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.Banned = true
	ident.BanReason = reason
	ident.BannedAt = &at
	s.identities[id] = ident
	return nil
}

func (s *MemoryStore) ClearBan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.Banned = false
	ident.BanReason = ""
	ident.BannedAt = nil
	s.identities[id] = ident
	return nil
}

func (s *MemoryStore) SetFingerprint(ctx context.Context, id, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.Fingerprint = fingerprint
	s.identities[id] = ident
	return nil
}

func (s *MemoryStore) IncrementAttempts(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.VerificationAttempts++
	s.identities[id] = ident
	return nil
}

func (s *MemoryStore) ListBanned(ctx context.Context) ([]Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var banned []Identity
	for _, ident := range s.identities {
		if ident.Banned {
			banned = append(banned, ident)
		}
	}
	// Newest bans first, matching the Postgres ORDER BY.
	sort.Slice(banned, func(i, j int) bool {
		ti, tj := banned[i].BannedAt, banned[j].BannedAt
		if ti == nil || tj == nil {
			return tj == nil
		}
		return ti.After(*tj)
	})
	return banned, nil
}

// MemoryBanStore is the in-memory moderation ledger.
type MemoryBanStore struct {
	mu      sync.RWMutex
	records []BanRecord
}

func NewMemoryBanStore() *MemoryBanStore {
	return &MemoryBanStore{}
}

func (s *MemoryBanStore) Append(ctx context.Context, record BanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryBanStore) ListByIdentity(ctx context.Context, identityID string) ([]BanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []BanRecord
	for _, r := range s.records {
		if r.IdentityID == identityID {
			out = append(out, r)
		}
	}
	return out, nil
}

// MemoryHistoryStore is the in-memory verification attempt journal.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	attempts []VerificationAttempt
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, attempt VerificationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *MemoryHistoryStore) ListByIdentity(ctx context.Context, identityID string, limit int) ([]VerificationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []VerificationAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if s.attempts[i].IdentityID != identityID {
			continue
		}
		out = append(out, s.attempts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
