package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/action"
	"github.com/aretw0/nova/pkg/affinity"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/aretw0/nova/pkg/scheduler"
	"github.com/google/uuid"
)

// Sequence is a StepSequence: a doubly linked list of steps, the current
// step and the back-stack of steps to return to.
//
// The back-stack only grows when moving to a step that is not its top, and
// pops when moving to its top. This makes "go back to where I came from"
// independent of the prev/next links.
type Sequence struct {
	groupID   uuid.UUID
	sched     *scheduler.Scheduler
	factory   ports.ViewFactory
	parent    ports.View
	logger    *slog.Logger
	lifecycle domain.LifecycleHooks

	steps []*Step
	byID  map[uuid.UUID]*Step

	// nav serializes DoStep calls; mu guards the fields below for readers.
	nav       sync.Mutex
	mu        sync.RWMutex
	current   *Step
	previous  []domain.StepInfo
	observers []func(ctx context.Context)
}

// SequenceOption configures a Sequence.
type SequenceOption func(*Sequence)

// WithGroupID sets the group id. Defaults to a random id.
func WithGroupID(id uuid.UUID) SequenceOption {
	return func(s *Sequence) {
		s.groupID = id
	}
}

// WithParent sets the view passed as parent when step views are created.
func WithParent(view ports.View) SequenceOption {
	return func(s *Sequence) {
		s.parent = view
	}
}

// WithSequenceLogger sets the logger.
func WithSequenceLogger(logger *slog.Logger) SequenceOption {
	return func(s *Sequence) {
		s.logger = logger
	}
}

// WithSequenceLifecycle reports committed navigations through h.OnStepChanged.
func WithSequenceLifecycle(h domain.LifecycleHooks) SequenceOption {
	return func(s *Sequence) {
		s.lifecycle = h
	}
}

// NewSequence links steps in order. Node ids must be unique; zero ids are
// replaced with fresh ones.
func NewSequence(sched *scheduler.Scheduler, factory ports.ViewFactory, steps []domain.StepInfo, opts ...SequenceOption) (*Sequence, error) {
	if sched == nil || factory == nil {
		return nil, errors.New("navigation: sequence needs a scheduler and a view factory")
	}
	s := &Sequence{
		groupID: uuid.New(),
		sched:   sched,
		factory: factory,
		logger:  logging.NewNop(),
		byID:    make(map[uuid.UUID]*Step, len(steps)),
	}
	for _, opt := range opts {
		opt(s)
	}

	var prev *Step
	for _, info := range steps {
		if info.NodeID == uuid.Nil {
			info.NodeID = uuid.New()
		}
		if _, dup := s.byID[info.NodeID]; dup {
			return nil, fmt.Errorf("navigation: duplicate node id %s (%q)", info.NodeID, info.Title)
		}
		step := &Step{info: info, prev: prev}
		if prev != nil {
			prev.next = step
		}
		s.steps = append(s.steps, step)
		s.byID[info.NodeID] = step
		prev = step
	}
	return s, nil
}

// GroupID returns the group id.
func (s *Sequence) GroupID() uuid.UUID { return s.groupID }

// Steps returns the steps in order.
func (s *Sequence) Steps() []*Step {
	return append([]*Step(nil), s.steps...)
}

// First returns the head step or nil when empty.
func (s *Sequence) First() *Step {
	if len(s.steps) == 0 {
		return nil
	}
	return s.steps[0]
}

// Find resolves a node id.
func (s *Sequence) Find(nodeID uuid.UUID) (*Step, bool) {
	step, ok := s.byID[nodeID]
	return step, ok
}

// Current returns the current step, nil before Start.
func (s *Sequence) Current() *Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// PreviousSteps returns a copy of the back-stack, bottom first.
func (s *Sequence) PreviousSteps() []domain.StepInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StepInfo(nil), s.previous...)
}

// CanGoToNextStep reports whether the current step has a successor.
func (s *Sequence) CanGoToNextStep() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.next != nil
}

// CanGoToPreviousStep reports whether the back-stack is non-empty.
func (s *Sequence) CanGoToPreviousStep() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.previous) > 0
}

// NextTarget returns the successor of the current step.
func (s *Sequence) NextTarget() (*Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.next == nil {
		return nil, false
	}
	return s.current.next, true
}

// PreviousTarget returns the step on top of the back-stack.
func (s *Sequence) PreviousTarget() (*Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.previous) == 0 {
		return nil, false
	}
	return s.byID[s.previous[len(s.previous)-1].NodeID], true
}

// OnChange registers fn to run on the affinity thread after every commit.
func (s *Sequence) OnChange(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start enters the first step.
func (s *Sequence) Start(ctx context.Context, forward ...domain.Entry) (bool, error) {
	first := s.First()
	if first == nil {
		return false, fmt.Errorf("navigation: start empty sequence %s: %w", s.groupID, domain.ErrStepNotFound)
	}
	return s.DoStep(ctx, first.ID(), forward...)
}

// Next moves to the successor of the current step.
func (s *Sequence) Next(ctx context.Context, forward ...domain.Entry) (bool, error) {
	target, ok := s.NextTarget()
	if !ok {
		return false, nil
	}
	return s.DoStep(ctx, target.ID(), forward...)
}

// Previous moves back to the top of the back-stack.
func (s *Sequence) Previous(ctx context.Context, forward ...domain.Entry) (bool, error) {
	target, ok := s.PreviousTarget()
	if !ok {
		return false, nil
	}
	return s.DoStep(ctx, target.ID(), forward...)
}

// backStackMove records how DoStep changed the back-stack so it can be undone.
type backStackMove struct {
	popped *domain.StepInfo
	pushed bool
}

// DoStep moves to targetID. A Leave veto aborts without touching any state;
// an Enter veto restores the back-stack and re-enters the original step.
// It returns false, nil for vetoed moves and a StepNotFoundError for unknown
// targets. Moving to the current step is a successful no-op.
func (s *Sequence) DoStep(ctx context.Context, targetID uuid.UUID, forward ...domain.Entry) (bool, error) {
	target, ok := s.byID[targetID]
	if !ok {
		return false, &domain.StepNotFoundError{NodeID: targetID}
	}

	s.nav.Lock()
	defer s.nav.Unlock()

	origin := s.Current()
	if origin == target {
		return true, nil
	}
	log := s.logger.With("group_id", s.groupID, "node_id", target.ID())

	if origin != nil {
		leaveCtx, err := domain.NewActionContext(forward...)
		if err != nil {
			return false, err
		}
		res, err := s.sched.Run(ctx, origin.owner, leaveAction(origin), leaveCtx)
		if err != nil {
			return false, fmt.Errorf("leave %q: %w", origin.Title(), err)
		}
		if !res.Succeeded() {
			log.InfoContext(ctx, "leave vetoed", "from", origin.ID())
			return false, nil
		}
	}

	var move backStackMove
	if err := affinity.Invoke(ctx, s.sched.Dispatcher(), func() error {
		move = s.moveBackStack(origin, target)
		return s.ensureView(ctx, target)
	}); err != nil {
		s.rollback(ctx, origin, move, forward)
		return false, fmt.Errorf("create view %q: %w", target.Title(), err)
	}

	entered, err := s.enter(ctx, target, forward)
	if err != nil || !entered {
		log.WarnContext(ctx, "enter vetoed, rolling back", "err", err)
		s.rollback(ctx, origin, move, forward)
		return false, err
	}

	if err := affinity.Invoke(ctx, s.sched.Dispatcher(), func() error {
		s.commit(ctx, origin, target, move)
		return nil
	}); err != nil {
		return false, err
	}
	log.InfoContext(ctx, "step entered", "title", target.Title())
	return true, nil
}

// RestoreBackStack replaces the back-stack with the given node ids, bottom first.
func (s *Sequence) RestoreBackStack(ctx context.Context, ids []uuid.UUID) error {
	infos := make([]domain.StepInfo, 0, len(ids))
	for _, id := range ids {
		step, ok := s.byID[id]
		if !ok {
			return &domain.StepNotFoundError{NodeID: id}
		}
		infos = append(infos, step.info)
	}

	s.nav.Lock()
	defer s.nav.Unlock()
	return affinity.Invoke(ctx, s.sched.Dispatcher(), func() error {
		s.mu.Lock()
		s.previous = infos
		s.mu.Unlock()
		s.notify(ctx)
		return nil
	})
}

// dispose disposes every created view. It runs on the affinity thread.
func (s *Sequence) dispose() {
	for _, step := range s.steps {
		step.dispose()
	}
}

func (s *Sequence) enter(ctx context.Context, step *Step, forward []domain.Entry) (bool, error) {
	params, err := stepParams(step, forward)
	if err != nil {
		return false, err
	}
	res, err := s.sched.Run(ctx, step.owner, enterAction(step), params)
	if err != nil {
		return false, fmt.Errorf("enter %q: %w", step.Title(), err)
	}
	return res.Succeeded(), nil
}

// moveBackStack pops the back-stack when target is its top and pushes origin
// otherwise.
func (s *Sequence) moveBackStack(origin, target *Step) backStackMove {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.previous); n > 0 && s.previous[n-1].NodeID == target.ID() {
		top := s.previous[n-1]
		s.previous = s.previous[:n-1]
		return backStackMove{popped: &top}
	}
	if origin == nil {
		return backStackMove{}
	}
	s.previous = append(s.previous, origin.info)
	return backStackMove{pushed: true}
}

func (s *Sequence) undoBackStack(move backStackMove) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case move.popped != nil:
		s.previous = append(s.previous, *move.popped)
	case move.pushed:
		s.previous = s.previous[:len(s.previous)-1]
	}
}

func (s *Sequence) ensureView(ctx context.Context, step *Step) error {
	if step.owner != nil {
		return nil
	}
	view, vm, err := s.factory.CreateView(ctx, s.parent, step.info)
	if err != nil {
		return err
	}
	step.view, step.vm = view, vm
	step.owner = action.NewOwner(step.Title(), view, vm)
	return nil
}

func (s *Sequence) rollback(ctx context.Context, origin *Step, move backStackMove, forward []domain.Entry) {
	_ = affinity.Invoke(ctx, s.sched.Dispatcher(), func() error {
		s.undoBackStack(move)
		return nil
	})
	if origin == nil {
		return
	}
	if ok, err := s.enter(ctx, origin, forward); err != nil || !ok {
		s.logger.WarnContext(ctx, "re-entering original step failed",
			"group_id", s.groupID, "node_id", origin.ID(), "err", err)
	}
}

func (s *Sequence) commit(ctx context.Context, origin, target *Step, move backStackMove) {
	s.mu.Lock()
	s.current = target
	s.mu.Unlock()

	if s.lifecycle.OnStepChanged != nil {
		var from uuid.UUID
		if origin != nil {
			from = origin.ID()
		}
		s.lifecycle.OnStepChanged(ctx, &domain.StepEvent{
			Timestamp: time.Now(),
			GroupID:   s.groupID,
			From:      from,
			To:        target.ID(),
			Back:      move.popped != nil,
		})
	}
	s.notify(ctx)
}

func (s *Sequence) notify(ctx context.Context) {
	s.mu.RLock()
	observers := append([]func(context.Context){}, s.observers...)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(ctx)
	}
}
