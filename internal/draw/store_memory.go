package draw

import (
	"context"
	"sync"

	"fairdraw/pkg/platform/sentinel"
)

type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]Result)}
}

func (s *MemoryStore) Save(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.CampaignID]; ok {
		return sentinel.ErrConflict
	}
	s.results[r.CampaignID] = r
	return nil
}

func (s *MemoryStore) FindByCampaign(_ context.Context, campaignID string) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[campaignID]
	if !ok {
		return Result{}, sentinel.ErrNotFound
	}
	return r, nil
}
