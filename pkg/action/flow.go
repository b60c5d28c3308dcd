package action

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Lifecycle states of a Flow.
const (
	StateCreated          = "created"
	StateBeforeDispatched = "before_dispatched"
	StateCanExecute       = "can_execute"
	StateRejected         = "rejected"
	StateExecuting        = "executing"
	StateFailed           = "failed"
	StateCompleting       = "completing"
	StateAfterDispatched  = "after_dispatched"
	StateDone             = "done"
)

// Lifecycle events of a Flow.
const (
	EventDispatchBefore = "dispatch_before"
	EventCheck          = "check"
	EventReject         = "reject"
	EventExecute        = "execute"
	EventFail           = "fail"
	EventComplete       = "complete"
	EventDispatchAfter  = "dispatch_after"
	EventFinish         = "finish"
)

// Phase names used in PanicError.
const (
	PhaseCanExecute       = "CanExecute"
	PhaseExecute          = "Execute"
	PhaseExecuteCompleted = "ExecuteCompleted"
)

// Result is the terminal outcome of a Flow.
type Result struct {
	FlowID uuid.UUID
	State  string
	Err    error
}

// Succeeded reports whether the flow reached Done.
func (r Result) Succeeded() bool { return r.State == StateDone }

// Rejected reports whether CanExecute refused the action.
func (r Result) Rejected() bool { return r.State == StateRejected }

// Failed reports whether Execute returned false or errored, or whether
// CanExecute or Execute panicked.
func (r Result) Failed() bool { return r.State == StateFailed }

// Flow is the lifecycle of one action instance against one owner:
//
//	created -> before_dispatched -> can_execute
//	can_execute -> rejected | failed | executing
//	executing -> failed | completing
//	completing -> after_dispatched -> done
//
// Rejected and failed flows skip ExecuteCompleted but still dispatch OnAfter.
//
// Prepare and Complete must run on the owner's affinity thread; Execute may
// run anywhere. The phases are strictly sequential, so the flow's
// ActionContext never sees concurrent access.
type Flow struct {
	id     uuid.UUID
	owner  *Owner
	action Action
	ac     *domain.ActionContext

	hooks     *hooks.Repository
	fault     ports.FaultHandler
	logger    *slog.Logger
	lifecycle domain.LifecycleHooks

	machine   *fsm.FSM
	err       error
	afterOnce sync.Once
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithHooks sets the hook repository. Defaults to hooks.Default().
func WithHooks(repo *hooks.Repository) FlowOption {
	return func(f *Flow) {
		f.hooks = repo
	}
}

// WithFaultHandler routes phase panics and Execute errors to handler.
func WithFaultHandler(handler ports.FaultHandler) FlowOption {
	return func(f *Flow) {
		f.fault = handler
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithLifecycle registers state change callbacks.
func WithLifecycle(h domain.LifecycleHooks) FlowOption {
	return func(f *Flow) {
		f.lifecycle = h
	}
}

// NewFlow binds act to owner. A nil ac is replaced by an empty context and
// a nil owner by an anonymous one without view or view-model.
func NewFlow(owner *Owner, act Action, ac *domain.ActionContext, opts ...FlowOption) *Flow {
	if ac == nil {
		ac, _ = domain.NewActionContext()
	}
	if owner == nil {
		owner = NewOwner("", nil, nil)
	}
	f := &Flow{
		id:     uuid.New(),
		owner:  owner,
		action: act,
		ac:     ac,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.hooks == nil {
		f.hooks = hooks.Default()
	}

	f.machine = fsm.NewFSM(
		StateCreated,
		fsm.Events{
			{Name: EventDispatchBefore, Src: []string{StateCreated}, Dst: StateBeforeDispatched},
			{Name: EventCheck, Src: []string{StateBeforeDispatched}, Dst: StateCanExecute},
			{Name: EventReject, Src: []string{StateCanExecute}, Dst: StateRejected},
			{Name: EventExecute, Src: []string{StateCanExecute}, Dst: StateExecuting},
			{Name: EventFail, Src: []string{StateCanExecute, StateExecuting}, Dst: StateFailed},
			{Name: EventComplete, Src: []string{StateExecuting}, Dst: StateCompleting},
			{Name: EventDispatchAfter, Src: []string{StateCompleting}, Dst: StateAfterDispatched},
			{Name: EventFinish, Src: []string{StateAfterDispatched}, Dst: StateDone},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				f.onEnter(ctx, e)
			},
		},
	)
	return f
}

// ID returns the flow's identity.
func (f *Flow) ID() uuid.UUID { return f.id }

// Owner returns the owner the flow runs against.
func (f *Flow) Owner() *Owner { return f.owner }

// Action returns the wrapped action.
func (f *Flow) Action() Action { return f.action }

// Kind returns the action's kind.
func (f *Flow) Kind() domain.ActionKind { return f.action.Kind() }

// Context returns the flow's ActionContext.
func (f *Flow) Context() *domain.ActionContext { return f.ac }

// State returns the current lifecycle state.
func (f *Flow) State() string { return f.machine.Current() }

// Err returns the error that failed the flow, if any.
func (f *Flow) Err() error { return f.err }

// Terminal reports whether the flow can make no further progress.
func (f *Flow) Terminal() bool {
	switch f.State() {
	case StateRejected, StateFailed, StateDone:
		return true
	}
	return false
}

// Result reports the flow's outcome so far.
func (f *Flow) Result() Result {
	return Result{FlowID: f.id, State: f.State(), Err: f.err}
}

// Prepare dispatches OnBefore hooks and evaluates CanExecute.
// It returns true when the flow moved to executing.
func (f *Flow) Prepare(ctx context.Context) bool {
	if err := f.fire(ctx, EventDispatchBefore); err != nil {
		return false
	}
	f.hooks.Dispatch(ctx, hooks.Before, f.Kind(), f.ac, f.targets()...)

	if err := f.fire(ctx, EventCheck); err != nil {
		return false
	}
	ok, err := f.canExecute(ctx)
	if err != nil {
		f.err = err
		f.report(ctx, err)
		_ = f.fire(ctx, EventFail)
		return false
	}
	if !ok {
		_ = f.fire(ctx, EventReject)
		return false
	}
	return f.fire(ctx, EventExecute) == nil
}

// Execute runs the action's work. Errors and panics fail the flow and are
// reported to the fault handler.
func (f *Flow) Execute(ctx context.Context) bool {
	if f.State() != StateExecuting {
		return false
	}
	ok, err := f.execute(ctx)
	if err != nil {
		f.err = err
		f.report(ctx, err)
		ok = false
	}
	if !ok {
		_ = f.fire(ctx, EventFail)
		return false
	}
	return f.fire(ctx, EventComplete) == nil
}

// Complete runs ExecuteCompleted and the classification effects for a
// completing flow, then dispatches OnAfter hooks whatever the outcome.
func (f *Flow) Complete(ctx context.Context) Result {
	if f.State() == StateCompleting {
		f.executeCompleted(ctx)

		kind := f.Kind()
		if kind.Is(domain.Terminating) {
			f.owner.terminate()
		}
		if kind.Is(domain.Creational) {
			f.owner.initialize()
		}
	}

	f.DispatchAfter(ctx)

	if f.State() == StateCompleting {
		if err := f.fire(ctx, EventDispatchAfter); err == nil {
			_ = f.fire(ctx, EventFinish)
		}
	}
	return f.Result()
}

// DispatchAfter runs the OnAfter hooks. Only the first call dispatches, so a
// flow abandoned before Complete can still be observed.
func (f *Flow) DispatchAfter(ctx context.Context) {
	f.afterOnce.Do(func() {
		f.hooks.Dispatch(ctx, hooks.After, f.Kind(), f.ac, f.targets()...)
	})
}

// Run drives every phase on the calling goroutine.
func (f *Flow) Run(ctx context.Context) Result {
	if f.Prepare(ctx) {
		f.Execute(ctx)
	}
	return f.Complete(ctx)
}

func (f *Flow) targets() []any {
	var out []any
	if v := f.owner.View(); v != nil {
		out = append(out, v)
	}
	if vm := f.owner.ViewModel(); vm != nil {
		out = append(out, vm)
	}
	return out
}

func (f *Flow) canExecute(ctx context.Context) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, f.panicError(PhaseCanExecute, r)
		}
	}()
	return f.action.CanExecute(ctx, f.ac), nil
}

func (f *Flow) execute(ctx context.Context) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, f.panicError(PhaseExecute, r)
		}
	}()
	ok, err = f.action.Execute(ctx, f.ac)
	if err != nil {
		err = fmt.Errorf("execute %s: %w", f.Kind().Name, err)
	}
	return ok, err
}

func (f *Flow) executeCompleted(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			f.report(ctx, f.panicError(PhaseExecuteCompleted, r))
		}
	}()
	f.action.ExecuteCompleted(ctx, f.ac)
}

func (f *Flow) panicError(phase string, r any) *PanicError {
	return &PanicError{
		Action: f.Kind().Name,
		Phase:  phase,
		Value:  r,
		Stack:  debug.Stack(),
	}
}

func (f *Flow) report(ctx context.Context, err error) {
	if f.fault != nil {
		f.fault(ctx, err)
		return
	}
	f.logger.ErrorContext(ctx, "action fault", "action", f.Kind().Name, "err", err)
}

func (f *Flow) fire(ctx context.Context, event string) error {
	if err := f.machine.Event(ctx, event); err != nil {
		f.logger.WarnContext(ctx, "invalid lifecycle transition",
			"action", f.Kind().Name, "event", event, "state", f.State(), "err", err)
		return err
	}
	return nil
}

func (f *Flow) onEnter(ctx context.Context, e *fsm.Event) {
	ownerID := f.owner.ID()
	f.logger.DebugContext(ctx, "action state",
		"action", f.Kind().Name, "owner", ownerID, "state", e.Dst)

	if f.lifecycle.OnFlowState != nil {
		f.lifecycle.OnFlowState(ctx, &domain.FlowEvent{
			Timestamp: time.Now(),
			FlowID:    f.id,
			OwnerID:   ownerID,
			Action:    f.Kind().Name,
			From:      e.Src,
			State:     e.Dst,
		})
	}
}
