package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateKey is returned when an entry is added under a key the context already holds.
	ErrDuplicateKey = errors.New("duplicate context key")

	// ErrMissingKey is returned when a context lookup names a key that was never added.
	ErrMissingKey = errors.New("missing context key")

	// ErrTypeMismatch is returned when a context value is read back as the wrong type.
	ErrTypeMismatch = errors.New("context value type mismatch")

	// ErrStepNotFound is returned when a navigation target is not part of the sequence.
	ErrStepNotFound = errors.New("step not found")

	// ErrOwnerTerminated is returned when an action is scheduled against a disposed owner.
	ErrOwnerTerminated = errors.New("owner terminated")

	// ErrSchedulerStopped is returned when the scheduler or its dispatcher no longer accepts work.
	ErrSchedulerStopped = errors.New("scheduler stopped")

	// ErrSessionNotFound is returned when a session ID cannot be found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoActiveWizard is returned by wizard commands when nothing is stacked.
	ErrNoActiveWizard = errors.New("no active wizard")
)

// ContextKeyError reports a duplicate or missing key.
type ContextKeyError struct {
	Key string
	Err error
}

func (e *ContextKeyError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Key)
}

func (e *ContextKeyError) Unwrap() error {
	return e.Err
}

// TypeMismatchError reports a value stored under Key with a type other than Want.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%v: key %q holds %s, want %s", ErrTypeMismatch, e.Key, e.Got, e.Want)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// StepNotFoundError names the node that could not be resolved.
type StepNotFoundError struct {
	NodeID uuid.UUID
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrStepNotFound, e.NodeID)
}

func (e *StepNotFoundError) Unwrap() error {
	return ErrStepNotFound
}
