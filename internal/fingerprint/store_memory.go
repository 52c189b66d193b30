package fingerprint

import (
	"context"
	"sort"
	"sync"
	"time"

	"fairdraw/pkg/platform/sentinel"
)

type membership struct {
	fingerprint string
	lastSeen    time.Time
}

// MemoryStore keeps the fingerprint index in mutex-guarded maps.
type MemoryStore struct {
	mu           sync.RWMutex
	fingerprints map[string]Fingerprint
	members      map[string]map[string]struct{} // fingerprint -> identity set
	byIdentity   map[string][]membership        // identity -> fingerprints, append order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fingerprints: make(map[string]Fingerprint),
		members:      make(map[string]map[string]struct{}),
		byIdentity:   make(map[string][]membership),
	}
}

func (s *MemoryStore) Record(ctx context.Context, identityID, fingerprint string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, known := s.fingerprints[fingerprint]
	if !known {
		fp = Fingerprint{Value: fingerprint, FirstSeen: now}
	}
	fp.LastSeen = now

	set := s.members[fingerprint]
	if set == nil {
		set = make(map[string]struct{})
		s.members[fingerprint] = set
	}
	if _, seen := set[identityID]; !seen {
		set[identityID] = struct{}{}
		fp.MemberCount++
	}
	s.fingerprints[fingerprint] = fp

	memberships := s.byIdentity[identityID]
	updated := false
	for i := range memberships {
		if memberships[i].fingerprint == fingerprint {
			memberships[i].lastSeen = now
			updated = true
			break
		}
	}
	if !updated {
		memberships = append(memberships, membership{fingerprint: fingerprint, lastSeen: now})
	}
	s.byIdentity[identityID] = memberships
	return nil
}

func (s *MemoryStore) CurrentOf(ctx context.Context, identityID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberships := s.byIdentity[identityID]
	if len(memberships) == 0 {
		return "", sentinel.ErrNotFound
	}
	current := memberships[0]
	for _, m := range memberships[1:] {
		if m.lastSeen.After(current.lastSeen) {
			current = m
		}
	}
	return current.fingerprint, nil
}

func (s *MemoryStore) Members(ctx context.Context, fingerprint string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.members[fingerprint]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Suspicious(ctx context.Context, threshold int) ([]Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Fingerprint
	for _, fp := range s.fingerprints {
		if fp.MemberCount >= threshold {
			out = append(out, fp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MemberCount != out[j].MemberCount {
			return out[i].MemberCount > out[j].MemberCount
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}
