package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and by kadroctl dry runs.
// A single mutex serializes all transactions, which trivially satisfies the
// per-key atomicity contract.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get returns the current value for key, or nil if absent.
func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Transaction applies update while holding the store lock.
func (s *Memory) Transaction(_ context.Context, key string, update UpdateFunc) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.values[key]
	next, err := update(current)
	if err != nil {
		return false, current, err
	}
	if next == nil {
		return false, current, nil
	}
	stored := make([]byte, len(next))
	copy(stored, next)
	s.values[key] = stored
	return true, next, nil
}

// Delete removes a key.
func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
