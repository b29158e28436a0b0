package session

import (
	"context"
	"sync"
	"time"

	"github.com/pixil98/go-quest/internal/engine"
)

// MemoryStore is an in-memory Store, used in tests and single-node runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*engine.State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*engine.State{}}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*engine.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state, nil
}

func (s *MemoryStore) Put(ctx context.Context, state *engine.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[state.Id] = state
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) ExpiredIds(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, state := range s.sessions {
		if !state.ExpiresAt.IsZero() && state.ExpiresAt.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
