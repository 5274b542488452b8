package profile

import (
	"context"
	"sync"
)

// MemoryStore keeps profiles in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

func (s *MemoryStore) Put(_ context.Context, p Profile) error {
	s.mu.Lock()
	s.profiles[p.ClientID] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, clientID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[clientID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Close() error { return nil }
