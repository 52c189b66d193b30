package entry

import (
	"context"
	"sort"
	"sync"
	"time"

	"fairdraw/pkg/platform/sentinel"
)

type entryKey struct {
	campaignID string
	identityID string
}

type edgeKey struct {
	referrerID string
	referredID string
	campaignID string
}

// MemoryStore keeps entries in mutex-guarded maps. Uniqueness checks happen
// under the lock, mirroring the Postgres primary-key behavior.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[entryKey]Entry)}
}

func (s *MemoryStore) Create(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{e.CampaignID, e.IdentityID}
	if _, exists := s.entries[k]; exists {
		return sentinel.ErrConflict
	}
	s.entries[k] = e
	return nil
}

func (s *MemoryStore) FindByKey(ctx context.Context, campaignID, identityID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[entryKey{campaignID, identityID}]
	if !ok {
		return Entry{}, sentinel.ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) Revive(ctx context.Context, campaignID, identityID, referredBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{campaignID, identityID}
	e, ok := s.entries[k]
	if !ok || e.Valid {
		return sentinel.ErrNotFound
	}
	e.Valid = true
	e.JoinedAt = time.Now()
	if referredBy != "" {
		e.ReferredBy = referredBy
	}
	s.entries[k] = e
	return nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, campaignID, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{campaignID, identityID}
	e, ok := s.entries[k]
	if !ok || !e.Valid {
		return sentinel.ErrNotFound
	}
	e.Valid = false
	s.entries[k] = e
	return nil
}

func (s *MemoryStore) InvalidateByIdentity(ctx context.Context, identityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if k.identityID == identityID && e.Valid {
			e.Valid = false
			s.entries[k] = e
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) IncrementBonus(ctx context.Context, campaignID, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{campaignID, identityID}
	e, ok := s.entries[k]
	if !ok || !e.Valid {
		return sentinel.ErrNotFound
	}
	e.BonusWeight++
	s.entries[k] = e
	return nil
}

func (s *MemoryStore) ListValid(ctx context.Context, campaignID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for k, e := range s.entries {
		if k.campaignID == campaignID && e.Valid {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out, nil
}

func (s *MemoryStore) CountValid(ctx context.Context, campaignID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k, e := range s.entries {
		if k.campaignID == campaignID && e.Valid {
			n++
		}
	}
	return n, nil
}

// MemoryReferralStore keeps referral edges in a mutex-guarded map.
type MemoryReferralStore struct {
	mu    sync.RWMutex
	edges map[edgeKey]ReferralEdge
}

func NewMemoryReferralStore() *MemoryReferralStore {
	return &MemoryReferralStore{edges: make(map[edgeKey]ReferralEdge)}
}

func (s *MemoryReferralStore) Create(ctx context.Context, edge ReferralEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := edgeKey{edge.ReferrerID, edge.ReferredID, edge.CampaignID}
	if _, exists := s.edges[k]; exists {
		return sentinel.ErrConflict
	}
	s.edges[k] = edge
	return nil
}

func (s *MemoryReferralStore) CountByReferrer(ctx context.Context, campaignID, referrerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.edges {
		if k.campaignID == campaignID && k.referrerID == referrerID {
			n++
		}
	}
	return n, nil
}
