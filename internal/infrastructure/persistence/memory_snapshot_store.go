package persistence

import (
	"context"
	"sync"

	"github.com/robin-raq/collabboard/internal/domain/repository"
)

// MemorySnapshotStore is a process-local SnapshotStore for development
// and tests.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySnapshotStore creates an empty in-memory store.
func NewMemorySnapshotStore() repository.SnapshotStore {
	return &MemorySnapshotStore{data: make(map[string][]byte)}
}

func (s *MemorySnapshotStore) Load(_ context.Context, roomID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.data[roomID]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, true, nil
}

func (s *MemorySnapshotStore) Save(_ context.Context, roomID string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.data[roomID] = cp
	s.mu.Unlock()
	return nil
}
