package ports

// Dispatcher marshals work onto an owner's affinity thread.
// Post must not block on fn and must run posted functions one at a time in
// the order they were posted.
type Dispatcher interface {
	Post(fn func()) error
}
