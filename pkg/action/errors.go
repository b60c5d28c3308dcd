package action

import (
	"fmt"
)

// PanicError wraps a panic recovered from an action phase.
type PanicError struct {
	Action string
	Phase  string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("action %s panicked in %s: %v", e.Action, e.Phase, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
