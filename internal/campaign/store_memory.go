package campaign

import (
	"context"
	"sort"
	"sync"
	"time"

	"fairdraw/pkg/platform/sentinel"
)

// MemoryStore keeps campaigns in a mutex-guarded map.
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[string]Campaign
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{campaigns: make(map[string]Campaign)}
}

func (s *MemoryStore) Create(ctx context.Context, c Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[c.ID]; exists {
		return sentinel.ErrConflict
	}
	s.campaigns[c.ID] = c
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return Campaign{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Close(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status == StatusClosed {
		return sentinel.ErrInvalidState
	}
	c.Status = StatusClosed
	s.campaigns[id] = c
	return nil
}

func (s *MemoryStore) ListOpen(ctx context.Context) ([]Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Campaign
	for _, c := range s.campaigns {
		if c.Status == StatusOpen {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosesAt.Before(out[j].ClosesAt) })
	return out, nil
}

func (s *MemoryStore) SetAnnouncementRef(ctx context.Context, id, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.AnnouncementRef = ref
	s.campaigns[id] = c
	return nil
}
