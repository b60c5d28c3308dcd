package hooks

import "fmt"

// InvocationError reports a hook that failed or panicked.
type InvocationError struct {
	Target string
	Hook   string
	Action string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("hook %s.%s failed for action %s: %v", e.Target, e.Hook, e.Action, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
