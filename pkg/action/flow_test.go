package action_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/nova/internal/testutils"
	"github.com/aretw0/nova/pkg/action"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	enterKind  = domain.NewKind("EnterAction", domain.Default, "Navigation")
	closeKind  = domain.NewKind("CloseAction", domain.Blocking|domain.Terminating)
	createKind = domain.NewKind("CreateAction", domain.Creational)
)

type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, s)
}

func (tr *trace) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

func newRepo(tr *trace) *hooks.Repository {
	repo := hooks.NewRepository()
	hooks.OnBefore(repo, "", hooks.NoContext(func(*testutils.ViewModel) error {
		tr.add("vm.OnBefore")
		return nil
	}))
	hooks.OnBefore(repo, "", hooks.NoContext(func(*testutils.View) error {
		tr.add("view.OnBefore")
		return nil
	}))
	hooks.OnAfter(repo, "", hooks.NoContext(func(*testutils.ViewModel) error {
		tr.add("vm.OnAfter")
		return nil
	}))
	return repo
}

func newFlow(t *testing.T, tr *trace, act action.Action, opts ...action.FlowOption) (*action.Flow, *testutils.View, *testutils.ViewModel, *[]string) {
	t.Helper()
	view := testutils.NewView("page")
	vm := testutils.NewViewModel("page")
	owner := action.NewOwner("page", view, vm)

	var states []string
	opts = append([]action.FlowOption{
		action.WithHooks(newRepo(tr)),
		action.WithLifecycle(domain.LifecycleHooks{
			OnFlowState: func(_ context.Context, e *domain.FlowEvent) {
				states = append(states, e.State)
			},
		}),
	}, opts...)
	return action.NewFlow(owner, act, nil, opts...), view, vm, &states
}

func recording(tr *trace, kind domain.ActionKind) *action.Func {
	return &action.Func{
		ActionKind: kind,
		CanExecuteFn: func(context.Context, *domain.ActionContext) bool {
			tr.add("CanExecute")
			return true
		},
		ExecuteFn: func(context.Context, *domain.ActionContext) (bool, error) {
			tr.add("Execute")
			return true, nil
		},
		CompletedFn: func(context.Context, *domain.ActionContext) {
			tr.add("ExecuteCompleted")
		},
	}
}

func TestFlow_Success(t *testing.T) {
	tr := &trace{}
	flow, _, _, states := newFlow(t, tr, recording(tr, enterKind))

	res := flow.Run(context.Background())

	assert.True(t, res.Succeeded())
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{
		"view.OnBefore", "vm.OnBefore", "CanExecute", "Execute", "ExecuteCompleted", "vm.OnAfter",
	}, tr.list())
	assert.Equal(t, []string{
		action.StateBeforeDispatched,
		action.StateCanExecute,
		action.StateExecuting,
		action.StateCompleting,
		action.StateAfterDispatched,
		action.StateDone,
	}, *states)
	assert.True(t, flow.Terminal())
}

func TestFlow_Rejected(t *testing.T) {
	tr := &trace{}
	act := recording(tr, enterKind)
	act.CanExecuteFn = func(context.Context, *domain.ActionContext) bool { return false }
	flow, _, _, states := newFlow(t, tr, act)

	res := flow.Run(context.Background())

	assert.True(t, res.Rejected())
	assert.Equal(t, []string{"view.OnBefore", "vm.OnBefore", "vm.OnAfter"}, tr.list())
	assert.Equal(t, action.StateRejected, (*states)[len(*states)-1])
}

func TestFlow_Failed(t *testing.T) {
	t.Run("Execute returns false", func(t *testing.T) {
		tr := &trace{}
		act := recording(tr, enterKind)
		act.ExecuteFn = func(context.Context, *domain.ActionContext) (bool, error) { return false, nil }
		flow, _, _, _ := newFlow(t, tr, act)

		res := flow.Run(context.Background())

		assert.True(t, res.Failed())
		assert.NoError(t, res.Err)
		assert.NotContains(t, tr.list(), "ExecuteCompleted")
		assert.Contains(t, tr.list(), "vm.OnAfter")
	})

	t.Run("Execute error is reported", func(t *testing.T) {
		tr := &trace{}
		boom := errors.New("boom")
		act := recording(tr, enterKind)
		act.ExecuteFn = func(context.Context, *domain.ActionContext) (bool, error) { return true, boom }

		var faults []error
		flow, _, _, _ := newFlow(t, tr, act, action.WithFaultHandler(func(_ context.Context, err error) {
			faults = append(faults, err)
		}))

		res := flow.Run(context.Background())

		assert.True(t, res.Failed())
		assert.ErrorIs(t, res.Err, boom)
		require.Len(t, faults, 1)
		assert.ErrorIs(t, faults[0], boom)
	})

	t.Run("Execute panic is contained", func(t *testing.T) {
		tr := &trace{}
		act := recording(tr, enterKind)
		act.ExecuteFn = func(context.Context, *domain.ActionContext) (bool, error) { panic("kaboom") }

		var faults []error
		flow, _, _, _ := newFlow(t, tr, act, action.WithFaultHandler(func(_ context.Context, err error) {
			faults = append(faults, err)
		}))

		res := flow.Run(context.Background())

		assert.True(t, res.Failed())
		var perr *action.PanicError
		require.ErrorAs(t, res.Err, &perr)
		assert.Equal(t, action.PhaseExecute, perr.Phase)
		assert.Equal(t, "kaboom", perr.Value)
		assert.Len(t, faults, 1)
		assert.Contains(t, tr.list(), "vm.OnAfter")
	})

	t.Run("CanExecute panic fails", func(t *testing.T) {
		tr := &trace{}
		act := recording(tr, enterKind)
		act.CanExecuteFn = func(context.Context, *domain.ActionContext) bool { panic("nope") }
		var faults []error
		flow, _, _, _ := newFlow(t, tr, act, action.WithFaultHandler(func(_ context.Context, err error) {
			faults = append(faults, err)
		}))

		res := flow.Run(context.Background())

		assert.True(t, res.Failed())
		assert.False(t, res.Rejected())
		assert.Equal(t, action.StateFailed, flow.State())
		var perr *action.PanicError
		require.ErrorAs(t, res.Err, &perr)
		assert.Equal(t, action.PhaseCanExecute, perr.Phase)
		assert.Len(t, faults, 1)
		assert.NotContains(t, tr.list(), "Execute")
		assert.Contains(t, tr.list(), "vm.OnAfter")
	})

	t.Run("OnAfter dispatches once", func(t *testing.T) {
		tr := &trace{}
		flow, _, _, _ := newFlow(t, tr, recording(tr, enterKind))

		flow.DispatchAfter(context.Background())
		flow.Run(context.Background())

		count := 0
		for _, e := range tr.list() {
			if e == "vm.OnAfter" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestFlow_ClassificationEffects(t *testing.T) {
	t.Run("Terminating disposes the view after ExecuteCompleted", func(t *testing.T) {
		tr := &trace{}
		var disposedDuringCompleted bool
		view := testutils.NewView("dialog")
		owner := action.NewOwner("dialog", view, testutils.NewViewModel("dialog"))
		act := &action.Func{
			ActionKind: closeKind,
			CompletedFn: func(context.Context, *domain.ActionContext) {
				disposedDuringCompleted = !view.IsValid()
			},
		}

		res := action.NewFlow(owner, act, nil, action.WithHooks(newRepo(tr))).Run(context.Background())

		assert.True(t, res.Succeeded())
		assert.False(t, disposedDuringCompleted)
		assert.Equal(t, 1, view.Disposals())
		assert.True(t, owner.Terminated())
	})

	t.Run("Terminating skipped on failure", func(t *testing.T) {
		view := testutils.NewView("dialog")
		owner := action.NewOwner("dialog", view, nil)
		act := &action.Func{
			ActionKind: closeKind,
			ExecuteFn:  func(context.Context, *domain.ActionContext) (bool, error) { return false, nil },
		}

		action.NewFlow(owner, act, nil, action.WithHooks(hooks.NewRepository())).Run(context.Background())

		assert.Zero(t, view.Disposals())
		assert.False(t, owner.Terminated())
	})

	t.Run("Creational initializes the view-model", func(t *testing.T) {
		vm := testutils.NewViewModel("editor")
		owner := action.NewOwner("editor", testutils.NewView("editor"), vm)
		act := &action.Func{ActionKind: createKind}

		res := action.NewFlow(owner, act, nil, action.WithHooks(hooks.NewRepository())).Run(context.Background())

		assert.True(t, res.Succeeded())
		assert.True(t, vm.Initialized())
	})
}

func TestFlow_ContextScope(t *testing.T) {
	repo := hooks.NewRepository()
	hooks.OnBefore(repo, "Enter", func(_ *testutils.ViewModel, ac *domain.ActionContext) error {
		return ac.Put("token", 42)
	})

	var seen []int
	var afterSeen bool
	hooks.OnAfter(repo, "Enter", func(_ *testutils.ViewModel, ac *domain.ActionContext) error {
		afterSeen = ac.ContainsKey("token")
		return nil
	})
	read := func(ac *domain.ActionContext) {
		if v, ok := domain.TryGetValue[int](ac, "token"); ok {
			seen = append(seen, v)
		}
	}
	act := &action.Func{
		ActionKind: enterKind,
		ExecuteFn: func(_ context.Context, ac *domain.ActionContext) (bool, error) {
			read(ac)
			return true, nil
		},
		CompletedFn: func(_ context.Context, ac *domain.ActionContext) { read(ac) },
	}
	owner := action.NewOwner("page", nil, testutils.NewViewModel("page"))

	first := action.NewFlow(owner, act, nil, action.WithHooks(repo))
	first.Run(context.Background())

	assert.Equal(t, []int{42, 42}, seen)
	assert.True(t, afterSeen)

	sibling := action.NewFlow(owner, &action.Func{ActionKind: closeKind}, nil, action.WithHooks(hooks.NewRepository()))
	assert.Zero(t, sibling.Context().Len())

	forwarded, err := domain.NewActionContext(first.Context().Entries()...)
	require.NoError(t, err)
	sibling = action.NewFlow(owner, &action.Func{ActionKind: closeKind}, forwarded, action.WithHooks(hooks.NewRepository()))
	assert.True(t, sibling.Context().ContainsKey("token"))
}

func TestFlow_PhasesOutOfOrder(t *testing.T) {
	flow := action.NewFlow(nil, &action.Func{ActionKind: enterKind}, nil, action.WithHooks(hooks.NewRepository()))

	assert.False(t, flow.Execute(context.Background()))
	assert.Equal(t, action.StateCreated, flow.State())

	require.True(t, flow.Prepare(context.Background()))
	assert.False(t, flow.Prepare(context.Background()))
	assert.True(t, flow.Execute(context.Background()))
	assert.True(t, flow.Complete(context.Background()).Succeeded())
}
