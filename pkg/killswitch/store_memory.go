package killswitch

import (
	"context"
	"sync"
)

// MemoryStore is the default in-process flag store.
type MemoryStore struct {
	mu       sync.RWMutex
	switches map[string]*Switch
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{switches: make(map[string]*Switch)}
}

// Get returns a copy of the switch, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*Switch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sw, ok := s.switches[id]
	if !ok {
		return nil, nil
	}
	cp := *sw
	return &cp, nil
}

// Put stores a copy of the switch.
func (s *MemoryStore) Put(_ context.Context, sw *Switch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sw
	s.switches[sw.ID] = &cp
	return nil
}

// List returns copies of all switches.
func (s *MemoryStore) List(_ context.Context) ([]*Switch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Switch, 0, len(s.switches))
	for _, sw := range s.switches {
		cp := *sw
		out = append(out, &cp)
	}
	return out, nil
}
