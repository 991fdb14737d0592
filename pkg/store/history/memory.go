package history

import (
	"context"
	"sync"

	"github.com/journalbuddy/backend/pkg/core/types"
)

// MemoryStore is an in-process history cache, the default for
// single-instance deployments and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]types.Turn
}

// NewMemoryStore creates an empty in-memory history cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]types.Turn)}
}

func (s *MemoryStore) Append(_ context.Context, conversationID string, turn types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[conversationID] = append(s.turns[conversationID], turn)
	return nil
}

func (s *MemoryStore) List(_ context.Context, conversationID string) ([]types.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.turns[conversationID]
	out := make([]types.Turn, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, conversationID)
	return nil
}
