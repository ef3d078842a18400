// Package redisstore provides a Redis-backed process.StateStore so process
// instances survive restarts and can be resumed from another replica.
// Checkpoints are stored as JSON values under a configurable key prefix with
// an optional TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/kernelmesh/kernelmesh/process"
)

// Store implements process.StateStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithTTL sets the expiration for checkpoints.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for checkpoints.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis state store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis state store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "kernelmesh:process:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(processID string) string { return s.prefix + processID }

// Save implements process.StateStore.
func (s *Store) Save(ctx context.Context, cp *process.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(cp.ProcessID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load implements process.StateStore.
func (s *Store) Load(ctx context.Context, processID string) (*process.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(processID)).Bytes()
	if err == backend.Nil {
		return nil, process.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", processID, err)
	}
	var cp process.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", processID, err)
	}
	return &cp, nil
}

// Delete implements process.StateStore.
func (s *Store) Delete(ctx context.Context, processID string) error {
	if err := s.client.Del(ctx, s.key(processID)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", processID, err)
	}
	return nil
}
