package http

import (
	"log/slog"
	"sync"
)

// StreamManager fans event payloads out to SSE subscribers. Subscribers
// registered under a thread ID see that thread only; the empty ID receives
// every thread's events.
type StreamManager struct {
	mu          sync.RWMutex
	logger      *slog.Logger
	subscribers map[string]map[chan<- string]struct{}
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a listener for threadID and returns its channel with
// a cancel func. Cancel closes the channel and drops the registration.
func (sm *StreamManager) Subscribe(threadID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[threadID]; !ok {
		sm.subscribers[threadID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[threadID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[threadID]; ok {
			if _, live := subs[ch]; live {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(sm.subscribers, threadID)
			}
		}
	}
}

// Broadcast delivers msg to the thread's subscribers and to the global
// ones. Slow subscribers with full buffers are skipped, never blocked on.
func (sm *StreamManager) Broadcast(threadID, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	deliver := func(subs map[chan<- string]struct{}) {
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("sse subscriber buffer full, dropping event", "thread_id", threadID)
			}
		}
	}

	deliver(sm.subscribers[threadID])
	if threadID != "" {
		deliver(sm.subscribers[""])
	}
}
