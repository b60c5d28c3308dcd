package ports

import (
	"context"

	"github.com/aretw0/nova/pkg/domain"
)

// JournalStore persists the navigation position of sessions so a shell can
// resume where the user left off.
type JournalStore interface {
	// Save persists the snapshot under its SessionID.
	Save(ctx context.Context, snapshot domain.NavigationSnapshot) error

	// Load retrieves the snapshot for a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (domain.NavigationSnapshot, error)

	// Delete removes the snapshot for a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
