// Package memory provides in-process adapters.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/nova/pkg/domain"
)

// Store implements ports.JournalStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.NavigationSnapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory journal.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.NavigationSnapshot),
	}
}

// Save stores a copy of the snapshot.
func (s *Store) Save(ctx context.Context, snap domain.NavigationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.SessionID] = clone(snap)
	return nil
}

// Load returns a copy so callers cannot mutate the stored back-stack.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.NavigationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return domain.NavigationSnapshot{}, domain.ErrSessionNotFound
	}
	return clone(snap), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the stored session ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func clone(snap domain.NavigationSnapshot) domain.NavigationSnapshot {
	out := snap
	out.PreviousSteps = append(out.PreviousSteps[:0:0], snap.PreviousSteps...)
	return out
}
