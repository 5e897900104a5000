// Package file provides the default snapshot store: one JSON file per
// thread under a base directory. Writes are atomic (temp file, fsync,
// rename), so a crash mid-save leaves the previous snapshot intact instead
// of a torn file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/aretw0/furrow/pkg/domain"
)

// DefaultBasePath is where thread snapshots land when no directory is
// configured.
var DefaultBasePath = filepath.Join(".furrow", "threads")

// Store implements ports.SnapshotStore on the local filesystem.
type Store struct {
	base string
}

// New creates a store rooted at basePath, or DefaultBasePath when empty.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return &Store{base: basePath}
}

// BasePath returns the directory snapshots are written to.
func (s *Store) BasePath() string { return s.base }

// validateID keeps thread IDs usable as file names; IDs arrive from the CLI
// and the HTTP API and must not traverse out of the base directory.
func validateID(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if strings.ContainsAny(threadID, `/\`) || threadID == "." || threadID == ".." {
		return fmt.Errorf("thread id %q contains path separators", threadID)
	}
	return nil
}

func (s *Store) path(threadID string) string {
	return filepath.Join(s.base, threadID+".json")
}

// Save writes the snapshot atomically, creating the base directory on first
// use.
func (s *Store) Save(ctx context.Context, threadID string, state *domain.State) error {
	if err := validateID(threadID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return fmt.Errorf("ensure thread directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := renameio.WriteFile(s.path(threadID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot; a missing file is domain.ErrThreadNotFound.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.State, error) {
	if err := validateID(threadID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", threadID, err)
	}
	return &state, nil
}

// PendingResume reports the node a paused thread stopped in front of, or ""
// when the thread is absent or not paused.
func (s *Store) PendingResume(ctx context.Context, threadID string) (string, error) {
	state, err := s.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			return "", nil
		}
		return "", err
	}
	if !state.AwaitingApproval {
		return "", nil
	}
	return state.ResumePoint, nil
}

// Delete removes the snapshot file. Unknown threads are a no-op.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if err := validateID(threadID); err != nil {
		return err
	}
	if err := os.Remove(s.path(threadID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// List returns the IDs of every stored thread.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list threads: %w", err)
	}

	threads := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		threads = append(threads, strings.TrimSuffix(name, ".json"))
	}
	return threads, nil
}
