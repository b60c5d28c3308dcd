// Package redis provides a Redis-backed navigation journal.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/nova/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "nova:journal:"
	indexKey      = "index"
)

// Store implements ports.JournalStore on Redis. Each snapshot is a JSON
// string under prefix+sessionID; a set under prefix+"index" tracks ids
// for List.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Defaults to "nova:journal:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires snapshots after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New connects to addr.
func New(addr string, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save writes the snapshot and indexes its session id.
func (s *Store) Save(ctx context.Context, snap domain.NavigationSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.SessionID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(snap.SessionID), data, s.ttl)
	pipe.SAdd(ctx, s.prefix+indexKey, snap.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

// Load reads a snapshot. Missing keys yield domain.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.NavigationSnapshot, error) {
	var snap domain.NavigationSnapshot
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return snap, domain.ErrSessionNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

// Delete removes the snapshot and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.SRem(ctx, s.prefix+indexKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", sessionID, err)
	}
	return nil
}

// List returns indexed ids whose snapshot still exists, pruning expired ones.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.prefix+indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		if n == 0 {
			s.client.SRem(ctx, s.prefix+indexKey, id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}
