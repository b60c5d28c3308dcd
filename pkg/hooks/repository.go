// Package hooks implements convention dispatch for action lifecycle hooks.
//
// Instead of discovering OnBefore*/OnAfter* methods at runtime, view and
// view-model types register typed callbacks at startup. A callback registered
// with an empty suffix fires for every action run against the target; a
// suffixed one fires only when the action's name or one of its aliases
// matches the suffix, case-insensitively. Both kinds fire, in registration order.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"unicode"

	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
)

// Phase selects which side of the lifecycle a hook runs on.
type Phase uint8

const (
	Before Phase = iota
	After
)

func (p Phase) String() string {
	if p == After {
		return "OnAfter"
	}
	return "OnBefore"
}

// Hook is the resolved, type-erased form of a registered callback.
type Hook func(target any, ac *domain.ActionContext) error

// Callable is one resolved hook, named the way it was registered
// (e.g. "OnBeforeEnter").
type Callable struct {
	Name   string
	Target reflect.Type
	hook   Hook
}

// Invoke runs the hook, converting a panic into an error.
func (c Callable) Invoke(target any, ac *domain.ActionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.hook(target, ac)
}

type registration struct {
	seq    uint64
	phase  Phase
	suffix string
	typ    reflect.Type
	hook   Hook
}

func (r registration) name() string {
	return r.phase.String() + r.suffix
}

// Repository stores hook registrations per target type and caches the
// resolved list per (type, action kind).
type Repository struct {
	mu    sync.RWMutex
	seq   uint64
	regs  map[reflect.Type][]registration
	cache sync.Map // reflect.Type -> *typeEntry

	fault  ports.FaultHandler
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithFaultHandler routes hook failures to handler.
func WithFaultHandler(handler ports.FaultHandler) Option {
	return func(r *Repository) {
		r.fault = handler
	}
}

// WithLogger configures the logger used by the default fault handler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository creates an empty repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		regs:   make(map[reflect.Type][]registration),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRepository = NewRepository()

// Default returns the process-wide repository.
func Default() *Repository {
	return defaultRepository
}

// SetFaultHandler replaces the fault handler. Intended for startup wiring.
func (r *Repository) SetFaultHandler(handler ports.FaultHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fault = handler
}

// SetLogger replaces the logger used by the default fault handler.
func (r *Repository) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// OnBefore registers fn to run before actions against targets of type T.
// It panics if fn is nil or suffix is not a plain identifier: malformed hooks
// are startup errors.
func OnBefore[T any](r *Repository, suffix string, fn func(T, *domain.ActionContext) error) {
	register(r, Before, suffix, fn)
}

// OnAfter registers fn to run after actions against targets of type T.
func OnAfter[T any](r *Repository, suffix string, fn func(T, *domain.ActionContext) error) {
	register(r, After, suffix, fn)
}

// NoContext adapts a hook that does not need the action context.
func NoContext[T any](fn func(T) error) func(T, *domain.ActionContext) error {
	if fn == nil {
		return nil
	}
	return func(target T, _ *domain.ActionContext) error {
		return fn(target)
	}
}

// Static adapts a hook that does not need the target instance.
func Static[T any](fn func(*domain.ActionContext) error) func(T, *domain.ActionContext) error {
	if fn == nil {
		return nil
	}
	return func(_ T, ac *domain.ActionContext) error {
		return fn(ac)
	}
}

func register[T any](r *Repository, phase Phase, suffix string, fn func(T, *domain.ActionContext) error) {
	typ := reflect.TypeFor[T]()
	if fn == nil {
		panic(fmt.Sprintf("hooks: nil %s%s hook for %s", phase, suffix, typ))
	}
	suffix = domain.CanonicalName(suffix)
	if !validSuffix(suffix) {
		panic(fmt.Sprintf("hooks: invalid suffix %q for %s", suffix, typ))
	}

	hook := func(target any, ac *domain.ActionContext) error {
		t, ok := target.(T)
		if !ok {
			return fmt.Errorf("target %T is not %s", target, typ)
		}
		return fn(t, ac)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.regs[typ] = append(r.regs[typ], registration{
		seq:    r.seq,
		phase:  phase,
		suffix: suffix,
		typ:    typ,
		hook:   hook,
	})
	// Resolved lists of every type may now be stale (interface registrations
	// apply to implementers).
	r.cache.Clear()
}

func validSuffix(s string) bool {
	for _, c := range s {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

// GetBefore returns the ordered OnBefore hooks for kind on targets of target's type.
func (r *Repository) GetBefore(target any, kind domain.ActionKind) []Callable {
	return r.resolve(target, kind).before
}

// GetAfter returns the ordered OnAfter hooks for kind on targets of target's type.
func (r *Repository) GetAfter(target any, kind domain.ActionKind) []Callable {
	return r.resolve(target, kind).after
}

// Dispatch invokes the hooks of phase for every target in order.
// Failures are reported to the fault handler and never stop the remaining hooks.
// It returns the number of hooks that failed.
func (r *Repository) Dispatch(ctx context.Context, phase Phase, kind domain.ActionKind, ac *domain.ActionContext, targets ...any) int {
	failed := 0
	for _, target := range targets {
		if target == nil {
			continue
		}
		resolved := r.resolve(target, kind)
		list := resolved.before
		if phase == After {
			list = resolved.after
		}
		for _, c := range list {
			if err := c.Invoke(target, ac); err != nil {
				failed++
				r.report(ctx, &InvocationError{
					Target: reflect.TypeOf(target).String(),
					Hook:   c.Name,
					Action: kind.Name,
					Err:    err,
				})
			}
		}
	}
	return failed
}

func (r *Repository) report(ctx context.Context, err error) {
	r.mu.RLock()
	fault, logger := r.fault, r.logger
	r.mu.RUnlock()

	if fault != nil {
		fault(ctx, err)
		return
	}
	logger.ErrorContext(ctx, "hook invocation failed", "err", err)
}

type resolved struct {
	before []Callable
	after  []Callable
}

type typeEntry struct {
	once sync.Once
	regs []registration
	// kinds caches resolved lists per action kind: string -> *kindEntry
	kinds sync.Map
}

type kindEntry struct {
	once sync.Once
	res  resolved
}

func (r *Repository) resolve(target any, kind domain.ActionKind) resolved {
	if target == nil {
		return resolved{}
	}
	typ := reflect.TypeOf(target)

	v, _ := r.cache.LoadOrStore(typ, &typeEntry{})
	te := v.(*typeEntry)
	te.once.Do(func() {
		te.regs = r.collect(typ)
	})

	kv, _ := te.kinds.LoadOrStore(kindKey(kind), &kindEntry{})
	ke := kv.(*kindEntry)
	ke.once.Do(func() {
		for _, reg := range te.regs {
			if reg.suffix != "" && !kind.Matches(reg.suffix) {
				continue
			}
			c := Callable{Name: reg.name(), Target: reg.typ, hook: reg.hook}
			if reg.phase == Before {
				ke.res.before = append(ke.res.before, c)
			} else {
				ke.res.after = append(ke.res.after, c)
			}
		}
	})
	return ke.res
}

// collect gathers registrations on typ and on interfaces typ implements,
// ordered by registration sequence.
func (r *Repository) collect(typ reflect.Type) []registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []registration
	for regType, regs := range r.regs {
		if regType == typ || (regType.Kind() == reflect.Interface && typ.Implements(regType)) {
			out = append(out, regs...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func kindKey(kind domain.ActionKind) string {
	key := kind.Name
	for _, a := range kind.Aliases {
		key += "|" + a
	}
	return key
}
