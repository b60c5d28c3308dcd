package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunJournalStoreContract runs a suite of tests to verify that a JournalStore
// implementation adheres to the defined interface contract.
func RunJournalStoreContract(t *testing.T, store JournalStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) domain.NavigationSnapshot {
		return domain.NavigationSnapshot{
			SessionID:     id,
			GroupID:       uuid.New(),
			CurrentNodeID: uuid.New(),
			CurrentTitle:  "Current",
			PreviousSteps: []uuid.UUID{uuid.New(), uuid.New()},
			UpdatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(sessionID)

		err := store.Save(ctx, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")

		assert.Equal(t, snap.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, snap.GroupID, loaded.GroupID)
		assert.Equal(t, snap.PreviousSteps, loaded.PreviousSteps)
		assert.Equal(t, "Current", loaded.CurrentTitle)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newSnapshot(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, newSnapshot(id1)))
		require.NoError(t, store.Save(ctx, newSnapshot(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
