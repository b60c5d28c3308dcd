package nova_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/nova"
	"github.com/aretw0/nova/internal/testutils"
	"github.com/aretw0/nova/pkg/action"
	"github.com/aretw0/nova/pkg/adapters/memory"
	"github.com/aretw0/nova/pkg/descriptor"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/aretw0/nova/pkg/stack"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modules(t *testing.T) []domain.Module {
	t.Helper()
	mods, err := descriptor.New().
		Module("reports", 20).
		Step("Reports", "ReportsView", "ReportsViewModel").
		Module("core", 10).
		Step("Home", "HomeView", "HomeViewModel").ID("home").
		Step("Orders", "OrdersView", "OrdersViewModel").ID("orders").Param("filter", "open").
		Build()
	require.NoError(t, err)
	return mods
}

func newShell(t *testing.T, opts ...nova.Option) (*nova.Shell, *testutils.Factory) {
	t.Helper()
	factory := testutils.NewFactory()
	base := []nova.Option{
		nova.WithViewFactory(factory),
		nova.WithDescriptors(descriptor.Static(modules(t))),
		nova.WithWorkers(4),
	}
	shell, err := nova.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shell.Close(context.Background()) })
	return shell, factory
}

func TestNew_Validation(t *testing.T) {
	_, err := nova.New()
	assert.Error(t, err, "a view factory is required")

	_, err = nova.New(nova.WithViewFactory(testutils.NewFactory()), nova.WithWorkers(0))
	assert.Error(t, err)

	shell, err := nova.New(nova.WithViewFactory(testutils.NewFactory()), nova.WithWorkers(1))
	require.NoError(t, err)
	require.NoError(t, shell.Close(context.Background()))
}

func TestShell_ConcurrentNavigation(t *testing.T) {
	orders := descriptor.NodeID("core", "orders", "Orders")
	for _, n := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("workers=%d", n), func(t *testing.T) {
			ctx := context.Background()
			shell, _ := newShell(t, nova.WithWorkers(n))
			hooks.OnBefore(shell.Hooks(), "Leave", hooks.NoContext(func(*testutils.ViewModel) error {
				time.Sleep(50 * time.Millisecond)
				return nil
			}))

			for i := 0; i < n; i++ {
				_, err := shell.Open(ctx, fmt.Sprintf("s%d", i), nil, nil)
				require.NoError(t, err)
			}

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					moved, err := shell.Navigate(ctx, id, orders)
					if err == nil && !moved {
						err = fmt.Errorf("%s did not move", id)
					}
					errs <- err
				}(fmt.Sprintf("s%d", i))
			}

			finished := make(chan struct{})
			go func() {
				wg.Wait()
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(5 * time.Second):
				t.Fatal("concurrent navigations made no progress")
			}
			close(errs)
			for err := range errs {
				assert.NoError(t, err)
			}
			for _, id := range shell.Sessions() {
				snap, err := shell.Snapshot(id)
				require.NoError(t, err)
				assert.Equal(t, orders, snap.CurrentNodeID)
			}
		})
	}
}

func TestShell_StackAndWaitInsideAction(t *testing.T) {
	ctx := context.Background()
	shell, _ := newShell(t, nova.WithWorkers(1))
	sess, err := shell.Open(ctx, "main", nil, nil)
	require.NoError(t, err)

	done := make(chan action.Result, 1)
	var cancelled bool
	go func() {
		res, _ := shell.Scheduler().Run(ctx, action.NewOwner("export", nil, nil), &action.Func{
			ActionKind: domain.NewKind("ExportAction", domain.Default),
			ExecuteFn: func(ctx context.Context, _ *domain.ActionContext) (bool, error) {
				entries, err := sess.StackAndWait(ctx, "Export", []domain.StepInfo{
					domain.NewStepInfo("Pick", "PickView", "PickViewModel"),
				})
				if err != nil {
					return false, err
				}
				cancelled = stack.Cancelled(entries)
				return true, nil
			},
		}, nil)
		done <- res
	}()

	require.Eventually(t, func() bool {
		w, ok := sess.ActiveWizard()
		return ok && w.Initialized()
	}, 3*time.Second, 5*time.Millisecond, "wizard never initialized")

	ok, err := sess.Cancel(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case res := <-done:
		assert.True(t, res.Succeeded())
		assert.True(t, cancelled)
	case <-time.After(3 * time.Second):
		t.Fatal("action waiting on the wizard never completed")
	}
}

func TestShell_Open(t *testing.T) {
	ctx := context.Background()
	shell, factory := newShell(t)
	home := descriptor.NodeID("core", "home", "Home")

	sess, err := shell.Open(ctx, "main", testutils.NewView("shell"), testutils.NewViewModel("shell"))
	require.NoError(t, err)

	assert.Equal(t, []string{"main"}, shell.Sessions())
	assert.Equal(t, home, sess.Content().Current().ID(), "lowest rank module comes first")
	assert.Equal(t, 1, factory.Created(home))
	assert.Len(t, sess.Content().Steps(), 3)

	_, err = shell.Open(ctx, "main", nil, nil)
	assert.ErrorIs(t, err, nova.ErrSessionExists)

	got, ok := shell.Session("main")
	assert.True(t, ok)
	assert.Same(t, sess, got)
}

func TestShell_OpenWithoutDescriptors(t *testing.T) {
	shell, err := nova.New(nova.WithViewFactory(testutils.NewFactory()))
	require.NoError(t, err)
	defer shell.Close(context.Background())

	_, err = shell.Open(context.Background(), "main", nil, nil)
	assert.ErrorIs(t, err, nova.ErrNoDescriptors)
}

func TestShell_OpenRefusedFirstStep(t *testing.T) {
	shell, factory := newShell(t)
	home := descriptor.NodeID("core", "home", "Home")
	factory.Model(home).SetEnter(false, nil)

	_, err := shell.Open(context.Background(), "main", nil, nil)
	assert.Error(t, err)
	assert.Empty(t, shell.Sessions())
}

func TestShell_NavigateAndSnapshot(t *testing.T) {
	ctx := context.Background()
	shell, factory := newShell(t)
	home := descriptor.NodeID("core", "home", "Home")
	orders := descriptor.NodeID("core", "orders", "Orders")

	_, err := shell.Open(ctx, "main", nil, nil)
	require.NoError(t, err)

	ok, err := shell.Navigate(ctx, "main", orders)
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := shell.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, orders, snap.CurrentNodeID)
	assert.Equal(t, "Orders", snap.CurrentTitle)
	assert.Equal(t, []uuid.UUID{home}, snap.PreviousSteps)

	e, found := domain.LookupEntry(factory.Model(orders).LastParams(), "filter")
	require.True(t, found)
	assert.Equal(t, "open", e.Value)

	_, err = shell.Navigate(ctx, "missing", orders)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = shell.Snapshot("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestShell_ResumeFromJournal(t *testing.T) {
	ctx := context.Background()
	journal := memory.NewStore()
	shell, _ := newShell(t, nova.WithJournal(journal))
	home := descriptor.NodeID("core", "home", "Home")
	orders := descriptor.NodeID("core", "orders", "Orders")
	reports := descriptor.NodeID("reports", "", "Reports")

	sess, err := shell.Open(ctx, "main", nil, nil)
	require.NoError(t, err)
	_, err = sess.Next(ctx)
	require.NoError(t, err)
	_, err = sess.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, reports, sess.Content().Current().ID())

	require.NoError(t, shell.CloseSession(ctx, "main"))
	assert.Empty(t, shell.Sessions())

	resumed, err := shell.Open(ctx, "main", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, reports, resumed.Content().Current().ID())

	snap := resumed.Snapshot()
	assert.Equal(t, []uuid.UUID{home, orders}, snap.PreviousSteps)
}

func TestShell_MetricsAndHookFaults(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	var mu sync.Mutex
	var faults []error
	shell, _ := newShell(t,
		nova.WithRegisterer(reg),
		nova.WithFaultHandler(func(_ context.Context, err error) {
			mu.Lock()
			defer mu.Unlock()
			faults = append(faults, err)
		}),
	)
	hooks.OnBefore(shell.Hooks(), "Navigation", func(*testutils.ViewModel, *domain.ActionContext) error {
		return errors.New("audit offline")
	})

	_, err := shell.Open(ctx, "main", nil, testutils.NewViewModel("shell"))
	require.NoError(t, err)
	sess, ok := shell.Session("main")
	require.True(t, ok)
	_, err = sess.Next(ctx)
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "nova_actions_total")
	require.NoError(t, err)
	assert.Positive(t, n)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, faults, "hook failures are contained and reported")
	var invErr *hooks.InvocationError
	assert.ErrorAs(t, faults[0], &invErr)
}

func TestShell_Close(t *testing.T) {
	ctx := context.Background()
	shell, factory := newShell(t)
	home := descriptor.NodeID("core", "home", "Home")

	_, err := shell.Open(ctx, "main", nil, nil)
	require.NoError(t, err)
	require.NoError(t, shell.Close(ctx))
	require.NoError(t, shell.Close(ctx))

	assert.Equal(t, 1, factory.View(home).Disposals())
	_, err = shell.Open(ctx, "other", nil, nil)
	assert.ErrorIs(t, err, nova.ErrShellClosed)
}
