package domain

import (
	"fmt"
	"reflect"
)

// KeyCancelled is the entry a returning wizard adds to report how it was closed.
const KeyCancelled = "Cancelled"

// Entry is one immutable key/value pair of an ActionContext.
// Forwardable marks entries that are copied into a derived context,
// e.g. when a wizard hands its results back to the use case that stacked it.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Forwardable bool   `json:"forwardable" yaml:"forwardable"`
}

// NewEntry creates an entry.
func NewEntry(key string, value any, forwardable bool) Entry {
	return Entry{Key: key, Value: value, Forwardable: forwardable}
}

// ActionContext is the ordered parameter and result bag of one action.
// It belongs to a single Flow; handing it between the affinity thread and a
// worker is sequential, so it carries no lock of its own.
type ActionContext struct {
	keys    []string
	entries map[string]Entry
}

// NewActionContext creates a context seeded with entries.
// It fails with ErrDuplicateKey if two entries share a key.
func NewActionContext(entries ...Entry) (*ActionContext, error) {
	ac := &ActionContext{
		entries: make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if err := ac.Add(e); err != nil {
			return nil, err
		}
	}
	return ac, nil
}

// Add inserts an entry. Existing keys are never overwritten.
func (c *ActionContext) Add(e Entry) error {
	if c.entries == nil {
		c.entries = make(map[string]Entry)
	}
	if _, exists := c.entries[e.Key]; exists {
		return &ContextKeyError{Key: e.Key, Err: ErrDuplicateKey}
	}
	c.keys = append(c.keys, e.Key)
	c.entries[e.Key] = e
	return nil
}

// Put is shorthand for Add(NewEntry(key, value, true)).
func (c *ActionContext) Put(key string, value any) error {
	return c.Add(NewEntry(key, value, true))
}

// ContainsKey reports whether key was added.
func (c *ActionContext) ContainsKey(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.entries[key]
	return ok
}

// Entry returns the raw entry stored under key.
func (c *ActionContext) Entry(key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (c *ActionContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Entries returns a snapshot of all entries in insertion order.
// The slice is a copy; mutating it does not affect the context.
func (c *ActionContext) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.entries[k])
	}
	return out
}

// Forwardable returns a snapshot of the entries marked forwardable.
func (c *ActionContext) Forwardable() []Entry {
	if c == nil {
		return nil
	}
	var out []Entry
	for _, k := range c.keys {
		if e := c.entries[k]; e.Forwardable {
			out = append(out, e)
		}
	}
	return out
}

// GetValue reads the value under key as T.
// It fails with ErrMissingKey if the key is absent and ErrTypeMismatch if
// the stored value is not a T.
func GetValue[T any](c *ActionContext, key string) (T, error) {
	var zero T
	e, ok := c.Entry(key)
	if !ok {
		return zero, &ContextKeyError{Key: key, Err: ErrMissingKey}
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Key:  key,
			Want: reflect.TypeFor[T]().String(),
			Got:  fmt.Sprintf("%T", e.Value),
		}
	}
	return v, nil
}

// TryGetValue is GetValue without the error. It never panics.
func TryGetValue[T any](c *ActionContext, key string) (T, bool) {
	v, err := GetValue[T](c, key)
	return v, err == nil
}

// LookupEntry finds key in a forwarded entry slice.
func LookupEntry(entries []Entry, key string) (Entry, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}
