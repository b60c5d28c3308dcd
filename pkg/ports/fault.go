package ports

import "context"

// FaultHandler receives failures that are contained rather than returned:
// hook panics, Execute panics, completion panics.
type FaultHandler func(ctx context.Context, err error)
