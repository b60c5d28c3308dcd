// Package stack hands the result of a stacked sub-flow back to whoever
// stacked it.
package stack

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Handle is a one-shot rendezvous: Wait blocks until Release or Close.
// The first Release wins; later calls and calls after Close are no-ops.
type Handle[T any] struct {
	id       uuid.UUID
	done     chan struct{}
	once     sync.Once
	value    T
	released *atomic.Bool
}

// NewHandle creates an unreleased handle.
func NewHandle[T any]() *Handle[T] {
	return &Handle[T]{
		id:       uuid.New(),
		done:     make(chan struct{}),
		released: atomic.NewBool(false),
	}
}

// ID returns the stack id.
func (h *Handle[T]) ID() uuid.UUID { return h.id }

// Wait blocks until the handle is released or closed. A closed handle yields
// the zero value.
func (h *Handle[T]) Wait() T {
	<-h.done
	return h.value
}

// WaitContext is Wait bounded by ctx.
func (h *Handle[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Release stores v and unblocks waiters. It reports whether v was accepted.
func (h *Handle[T]) Release(v T) bool {
	accepted := false
	h.once.Do(func() {
		h.value = v
		h.released.Store(true)
		close(h.done)
		accepted = true
	})
	return accepted
}

// Close unblocks waiters with the zero value unless already released.
// It is safe to defer on every exit path.
func (h *Handle[T]) Close() error {
	h.once.Do(func() {
		close(h.done)
	})
	return nil
}

// Released reports whether a value was delivered.
func (h *Handle[T]) Released() bool { return h.released.Load() }

// Done is closed once the handle is released or closed.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }
