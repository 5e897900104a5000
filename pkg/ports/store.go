package ports

import (
	"context"

	"github.com/aretw0/furrow/pkg/domain"
)

// SnapshotStore defines the interface for persisting thread state. The
// engine writes a snapshot after every node, so implementations must make
// each Save atomic: a reader never observes a partially written snapshot.
//
// Writes to the same thread are serialized by the engine; implementations
// do not need their own per-thread ordering.
type SnapshotStore interface {
	// Save persists the snapshot for a thread, replacing any previous one.
	Save(ctx context.Context, threadID string, state *domain.State) error

	// Load retrieves the latest snapshot for a thread.
	// Returns domain.ErrThreadNotFound if the thread does not exist.
	Load(ctx context.Context, threadID string) (*domain.State, error)

	// PendingResume reports the node a thread is suspended before, or ""
	// when the thread is not suspended (or does not exist).
	PendingResume(ctx context.Context, threadID string) (string, error)

	// Delete removes the snapshot for a thread.
	Delete(ctx context.Context, threadID string) error

	// List returns the IDs of all stored threads.
	List(ctx context.Context) ([]string, error)
}
