package graph

import (
	"context"
	"fmt"
	"sync"
)

// lockEntry holds one thread's mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// threadLocks serializes engine invocations per thread within the process.
// Entries are reference counted so idle threads leave no residue in the map.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*lockEntry)}
}

// acquire gets or creates the entry for a thread and increments its count.
// The caller must lock entry.mu and later call release(threadID).
func (t *threadLocks) acquire(threadID string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.locks[threadID]
	if !exists {
		entry = &lockEntry{}
		t.locks[threadID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and drops the entry at zero.
func (t *threadLocks) release(threadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.locks[threadID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(t.locks, threadID)
	}
}

// withThreadLock runs fn while holding the thread's process-local mutex and,
// when a distributed locker is configured, the cross-process lock as well.
func (e *Engine) withThreadLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	entry := e.locks.acquire(threadID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		e.locks.release(threadID)
	}()

	if e.locker != nil {
		unlock, err := e.locker.Acquire(ctx, threadID, e.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire distributed lock for thread %s: %w", threadID, err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				e.logger.Warn("failed to release distributed lock, it will expire via TTL",
					"thread_id", threadID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
