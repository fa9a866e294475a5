// Package memory keeps idempotency keys in process for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/mistika/checkout/internal/checkout/ports"
)

type Store struct {
	mu    sync.RWMutex
	items map[string]ports.StoredResponse
}

func NewStore() *Store {
	return &Store{items: make(map[string]ports.StoredResponse)}
}

func (s *Store) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	copy := value
	return &copy, nil
}

// Save keeps the first response for a key, matching the postgres store.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[key]; exists {
		return nil
	}
	s.items[key] = response
	return nil
}
