package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionContext_AddDuplicate(t *testing.T) {
	ac, err := domain.NewActionContext(domain.NewEntry("user", "ana", true))
	require.NoError(t, err)

	err = ac.Add(domain.NewEntry("user", "bob", true))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	var keyErr *domain.ContextKeyError
	require.True(t, errors.As(err, &keyErr))
	assert.Equal(t, "user", keyErr.Key)

	// The original value survives.
	v, err := domain.GetValue[string](ac, "user")
	require.NoError(t, err)
	assert.Equal(t, "ana", v)
}

func TestNewActionContext_RejectsDuplicates(t *testing.T) {
	_, err := domain.NewActionContext(
		domain.NewEntry("a", 1, true),
		domain.NewEntry("a", 2, true),
	)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestGetValue(t *testing.T) {
	ac, err := domain.NewActionContext(domain.NewEntry("count", 42, false))
	require.NoError(t, err)

	t.Run("Missing", func(t *testing.T) {
		_, err := domain.GetValue[int](ac, "nope")
		assert.ErrorIs(t, err, domain.ErrMissingKey)
	})

	t.Run("Mismatch", func(t *testing.T) {
		_, err := domain.GetValue[string](ac, "count")
		assert.ErrorIs(t, err, domain.ErrTypeMismatch)

		var tm *domain.TypeMismatchError
		require.True(t, errors.As(err, &tm))
		assert.Equal(t, "string", tm.Want)
		assert.Equal(t, "int", tm.Got)
	})

	t.Run("Interface", func(t *testing.T) {
		v, err := domain.GetValue[any](ac, "count")
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("NilContext", func(t *testing.T) {
		_, err := domain.GetValue[int](nil, "count")
		assert.ErrorIs(t, err, domain.ErrMissingKey)
	})
}

func TestTryGetValue_NeverPanics(t *testing.T) {
	ac, err := domain.NewActionContext(domain.NewEntry("flag", true, true))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		v, ok := domain.TryGetValue[bool](ac, "flag")
		assert.True(t, ok)
		assert.True(t, v)

		_, ok = domain.TryGetValue[bool](ac, "missing")
		assert.False(t, ok)

		_, ok = domain.TryGetValue[int](ac, "flag")
		assert.False(t, ok)

		_, ok = domain.TryGetValue[int](nil, "flag")
		assert.False(t, ok)
	})
}

func TestActionContext_EntriesSnapshot(t *testing.T) {
	ac, err := domain.NewActionContext(
		domain.NewEntry("b", 2, true),
		domain.NewEntry("a", 1, false),
		domain.NewEntry("c", 3, true),
	)
	require.NoError(t, err)

	entries := ac.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{entries[0].Key, entries[1].Key, entries[2].Key})

	// Mutating the snapshot leaves the context untouched.
	entries[0].Value = 99
	v, err := domain.GetValue[int](ac, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	fwd := ac.Forwardable()
	require.Len(t, fwd, 2)
	assert.Equal(t, "b", fwd[0].Key)
	assert.Equal(t, "c", fwd[1].Key)

	// A derived context starts from the snapshot only.
	derived, err := domain.NewActionContext(fwd...)
	require.NoError(t, err)
	assert.False(t, derived.ContainsKey("a"))
	assert.True(t, derived.ContainsKey("c"))
}
