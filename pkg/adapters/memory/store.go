// Package memory provides an in-process SnapshotStore, used by tests and as
// the zero-setup default for ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/aretw0/furrow/pkg/domain"
)

// Store implements ports.SnapshotStore in memory. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.State
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.State)}
}

// Save persists a deep copy of the snapshot, mirroring the isolation a
// serializing store provides.
func (s *Store) Save(ctx context.Context, threadID string, state *domain.State) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[threadID] = copied
	return nil
}

// Load retrieves a copy of the snapshot so callers can never mutate the
// stored state through the returned pointer.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[threadID]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	return state.Clone(), nil
}

// PendingResume reports the node the thread is suspended before, or "".
func (s *Store) PendingResume(ctx context.Context, threadID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[threadID]
	if !ok || !state.AwaitingApproval {
		return "", nil
	}
	return state.ResumePoint, nil
}

// Delete removes the snapshot. Deleting an unknown thread is a no-op.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

// List returns the known thread IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
