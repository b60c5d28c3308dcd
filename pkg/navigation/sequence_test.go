package navigation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/nova/internal/testutils"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/aretw0/nova/pkg/navigation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_BackStack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	abc := steps("A", "B", "C")
	a, c := abc[0].NodeID, abc[2].NodeID

	seq, err := navigation.NewSequence(fx.sched, fx.factory, abc)
	require.NoError(t, err)

	ok, err := seq.Start(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, seq.Current().ID())
	assert.Empty(t, seq.PreviousSteps())
	viewA := seq.Current().View()

	ok, err = seq.DoStep(ctx, c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c, seq.Current().ID())
	assert.Equal(t, []uuid.UUID{a}, ids(seq.PreviousSteps()))
	assert.True(t, seq.CanGoToPreviousStep())
	assert.False(t, seq.CanGoToNextStep())

	ok, err = seq.DoStep(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, seq.Current().ID())
	assert.Empty(t, seq.PreviousSteps())
	assert.Same(t, viewA, seq.Current().View())
	assert.Equal(t, 1, fx.factory.Created(a))
}

func TestSequence_NextAndPrevious(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	abc := steps("A", "B", "C")

	seq, err := navigation.NewSequence(fx.sched, fx.factory, abc)
	require.NoError(t, err)
	_, err = seq.Start(ctx)
	require.NoError(t, err)

	ok, err := seq.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = seq.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, abc[2].NodeID, seq.Current().ID())
	assert.Equal(t, ids(abc[:2]), ids(seq.PreviousSteps()))

	ok, err = seq.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = seq.Previous(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, abc[1].NodeID, seq.Current().ID())
	assert.Equal(t, ids(abc[:1]), ids(seq.PreviousSteps()))
}

func TestSequence_LeaveVetoLeavesStateUntouched(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	abc := steps("A", "B", "C")

	seq, err := navigation.NewSequence(fx.sched, fx.factory, abc)
	require.NoError(t, err)
	_, err = seq.Start(ctx)
	require.NoError(t, err)
	_, err = seq.DoStep(ctx, abc[1].NodeID)
	require.NoError(t, err)

	current, previous := seq.Current(), seq.PreviousSteps()
	fx.factory.Model(abc[1].NodeID).SetLeave(false)

	ok, err := seq.DoStep(ctx, abc[2].NodeID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Same(t, current, seq.Current())
	assert.Equal(t, previous, seq.PreviousSteps())
	assert.Zero(t, fx.factory.Created(abc[2].NodeID))
}

func TestSequence_EnterFailureRollsBack(t *testing.T) {
	t.Run("forward move", func(t *testing.T) {
		fx := newFixture(t)
		ctx := context.Background()
		ab := steps("A", "B")
		vmA := fx.factory.Model(ab[0].NodeID)
		fx.factory.Model(ab[1].NodeID).SetEnter(false, nil)

		seq, err := navigation.NewSequence(fx.sched, fx.factory, ab)
		require.NoError(t, err)
		_, err = seq.Start(ctx)
		require.NoError(t, err)

		ok, err := seq.DoStep(ctx, ab[1].NodeID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, ab[0].NodeID, seq.Current().ID())
		assert.Empty(t, seq.PreviousSteps())
		assert.Equal(t, []string{"enter", "leave", "enter"}, vmA.Calls())
	})

	t.Run("backward move restores popped entry", func(t *testing.T) {
		fx := newFixture(t)
		ctx := context.Background()
		abc := steps("A", "B", "C")

		seq, err := navigation.NewSequence(fx.sched, fx.factory, abc)
		require.NoError(t, err)
		_, err = seq.Start(ctx)
		require.NoError(t, err)
		_, err = seq.DoStep(ctx, abc[2].NodeID)
		require.NoError(t, err)

		boom := errors.New("boom")
		fx.factory.Model(abc[0].NodeID).SetEnter(false, boom)

		ok, err := seq.DoStep(ctx, abc[0].NodeID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, abc[2].NodeID, seq.Current().ID())
		assert.Equal(t, ids(abc[:1]), ids(seq.PreviousSteps()))
		assert.Equal(t, 2, fx.factory.Model(abc[2].NodeID).Count("enter"))
	})

	t.Run("view creation failure", func(t *testing.T) {
		fx := newFixture(t)
		ctx := context.Background()
		ab := steps("A", "B")

		seq, err := navigation.NewSequence(fx.sched, fx.factory, ab)
		require.NoError(t, err)
		_, err = seq.Start(ctx)
		require.NoError(t, err)

		boom := errors.New("no view")
		fx.factory.Fail = boom
		ok, err := seq.DoStep(ctx, ab[1].NodeID)
		assert.ErrorIs(t, err, boom)
		assert.False(t, ok)
		assert.Equal(t, ab[0].NodeID, seq.Current().ID())
		assert.Empty(t, seq.PreviousSteps())
	})
}

func TestSequence_StepNotFound(t *testing.T) {
	fx := newFixture(t)
	seq, err := navigation.NewSequence(fx.sched, fx.factory, steps("A"))
	require.NoError(t, err)

	missing := uuid.New()
	ok, err := seq.DoStep(context.Background(), missing)
	assert.False(t, ok)
	require.ErrorIs(t, err, domain.ErrStepNotFound)
	var nf *domain.StepNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, missing, nf.NodeID)
}

func TestSequence_DuplicateNodes(t *testing.T) {
	fx := newFixture(t)
	a := steps("A")[0]
	_, err := navigation.NewSequence(fx.sched, fx.factory, []domain.StepInfo{a, a})
	assert.Error(t, err)
}

func TestSequence_SameTargetIsNoop(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := steps("A")
	seq, err := navigation.NewSequence(fx.sched, fx.factory, a)
	require.NoError(t, err)
	_, err = seq.Start(ctx)
	require.NoError(t, err)

	ok, err := seq.DoStep(ctx, a[0].NodeID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"enter"}, fx.factory.Model(a[0].NodeID).Calls())
}

func TestSequence_Parameters(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := domain.NewStepInfo("A", "AView", "AViewModel")
	b := domain.NewStepInfo("B", "BView", "BViewModel",
		domain.NewEntry("Mode", "edit", false),
		domain.NewEntry("Name", "default", false),
	)
	parent := testutils.NewView("shell")

	seq, err := navigation.NewSequence(fx.sched, fx.factory, []domain.StepInfo{a, b}, navigation.WithParent(parent))
	require.NoError(t, err)
	_, err = seq.Start(ctx)
	require.NoError(t, err)

	_, err = seq.DoStep(ctx, b.NodeID, domain.NewEntry("Name", "forwarded", true))
	require.NoError(t, err)

	params := fx.factory.Model(b.NodeID).LastParams()
	mode, ok := domain.LookupEntry(params, "Mode")
	require.True(t, ok)
	assert.Equal(t, "edit", mode.Value)
	name, ok := domain.LookupEntry(params, "Name")
	require.True(t, ok)
	assert.Equal(t, "forwarded", name.Value)
	assert.Same(t, parent, fx.factory.Parent(b.NodeID))
}

func TestSequence_NavigationHooks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	counts := map[string]int{}
	count := func(name string) func(*testutils.ViewModel) error {
		return func(*testutils.ViewModel) error {
			counts[name]++
			return nil
		}
	}
	hooks.OnBefore(fx.repo, "Navigation", hooks.NoContext(count("OnBeforeNavigation")))
	hooks.OnBefore(fx.repo, "Enter", hooks.NoContext(count("OnBeforeEnter")))
	hooks.OnAfter(fx.repo, "Leave", hooks.NoContext(count("OnAfterLeave")))

	ab := steps("A", "B")
	seq, err := navigation.NewSequence(fx.sched, fx.factory, ab)
	require.NoError(t, err)
	_, err = seq.Start(ctx)
	require.NoError(t, err)
	_, err = seq.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, counts["OnBeforeNavigation"])
	assert.Equal(t, 2, counts["OnBeforeEnter"])
	assert.Equal(t, 1, counts["OnAfterLeave"])
}

func TestSequence_StepChangedLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	var events []domain.StepEvent
	seq, err := navigation.NewSequence(fx.sched, fx.factory, steps("A", "B"),
		navigation.WithSequenceLifecycle(domain.LifecycleHooks{
			OnStepChanged: func(_ context.Context, e *domain.StepEvent) {
				events = append(events, *e)
			},
		}))
	require.NoError(t, err)

	_, err = seq.Start(ctx)
	require.NoError(t, err)
	_, err = seq.Next(ctx)
	require.NoError(t, err)
	_, err = seq.Previous(ctx)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, uuid.Nil, events[0].From)
	assert.False(t, events[1].Back)
	assert.True(t, events[2].Back)
	assert.Equal(t, seq.GroupID(), events[2].GroupID)
}

func TestSequence_RestoreBackStack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	abc := steps("A", "B", "C")
	seq, err := navigation.NewSequence(fx.sched, fx.factory, abc)
	require.NoError(t, err)

	require.NoError(t, seq.RestoreBackStack(ctx, ids(abc[:2])))
	assert.Equal(t, ids(abc[:2]), ids(seq.PreviousSteps()))

	err = seq.RestoreBackStack(ctx, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, domain.ErrStepNotFound)
}

func TestWizard_Buttons(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	s12 := steps("S1", "S2")

	w, err := navigation.NewWizard(fx.sched, fx.factory, "Setup", s12, nil)
	require.NoError(t, err)
	assert.Equal(t, navigation.Buttons{Finish: true, Cancel: true}, w.Buttons())

	_, err = w.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigation.Buttons{Next: true, Cancel: true}, w.Buttons())

	_, err = w.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigation.Buttons{Previous: true, Finish: true, Cancel: true}, w.Buttons())

	locked, err := navigation.NewWizard(fx.sched, fx.factory, "Locked", steps("L1"), nil, navigation.WithCancel(false))
	require.NoError(t, err)
	assert.False(t, locked.Buttons().Cancel)
}
