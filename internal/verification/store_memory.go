package verification

import (
	"context"
	"sync"

	"fairdraw/pkg/platform/sentinel"
)

// MemoryStore keeps live challenges in a mutex-guarded map.
type MemoryStore struct {
	mu         sync.RWMutex
	challenges map[string]Challenge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{challenges: make(map[string]Challenge)}
}

func (s *MemoryStore) Put(ctx context.Context, challenge Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.IdentityID] = challenge
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, identityID string) (Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.challenges[identityID]
	if !ok {
		return Challenge{}, sentinel.ErrNotFound
	}
	return ch, nil
}

func (s *MemoryStore) Delete(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, identityID)
	return nil
}
