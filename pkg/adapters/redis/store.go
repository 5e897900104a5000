// Package redis provides a Redis-backed snapshot store and a distributed
// lock, for running the agent against shared state from more than one
// process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/furrow/pkg/domain"
)

// indexHorizon scores index members that never expire. 2100-01-01.
const indexHorizon = 4102444800

// Store implements ports.SnapshotStore on Redis. Snapshots live under a key
// prefix; a ZSET index scored by expiry keeps List cheap and lets expired
// threads get pruned lazily.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL expires threads after the given idle duration. Zero keeps them
// forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a store over an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "furrow:thread:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(threadID string) string { return s.prefix + threadID }
func (s *Store) indexKey() string           { return s.prefix + "index" }

// Save writes the snapshot and refreshes the thread's index entry in one
// pipeline.
func (s *Store) Save(ctx context.Context, threadID string, state *domain.State) error {
	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	score := float64(indexHorizon)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(threadID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: threadID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot to redis: %w", err)
	}
	return nil
}

// Load reads a snapshot; a missing key is domain.ErrThreadNotFound.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.State, error) {
	val, err := s.client.Get(ctx, s.key(threadID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("load snapshot from redis: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
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

// Delete removes the snapshot and its index entry. Unknown threads are a
// no-op.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(threadID))
	pipe.ZRem(ctx, s.indexKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete snapshot from redis: %w", err)
	}
	return nil
}

// List prunes expired index entries and returns the remaining thread IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("prune expired threads: %w", err)
	}

	threads, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list threads from redis: %w", err)
	}
	return threads, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
