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
	"github.com/aretw0/nova/pkg/stack"
	"github.com/google/uuid"
)

// Session is the navigation owner of one shell window: a content sequence
// plus the stack of wizards overlaying it.
//
// Navigation runs as a Blocking action, on the session owner for content
// steps or on the top wizard's owner while one is stacked, so two rapid
// commands never overlap and CurrentView only changes in ExecuteCompleted.
type Session struct {
	id        string
	sched     *scheduler.Scheduler
	factory   ports.ViewFactory
	journal   ports.JournalStore
	logger    *slog.Logger
	lifecycle domain.LifecycleHooks

	contentView ports.View
	contentVM   any
	owner       *action.Owner
	content     *Sequence

	mu          sync.RWMutex
	overlays    []*Wizard
	currentView ports.View
	closed      bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithContent sets the shell's content view and view-model. The view parents
// content step views; the view-model receives wizard results when the active
// step's view-model does not implement ports.UseCaseReturner.
func WithContent(view ports.View, vm any) SessionOption {
	return func(s *Session) {
		s.contentView, s.contentVM = view, vm
	}
}

// WithJournal persists the content position after every committed step.
func WithJournal(store ports.JournalStore) SessionOption {
	return func(s *Session) {
		s.journal = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLifecycle reports step changes of the content sequence and wizards.
func WithLifecycle(h domain.LifecycleHooks) SessionOption {
	return func(s *Session) {
		s.lifecycle = h
	}
}

// NewSession seeds a session with the ordered content steps. The content
// group id is derived from the session id so journals stay comparable.
func NewSession(id string, sched *scheduler.Scheduler, factory ports.ViewFactory, steps []domain.StepInfo, opts ...SessionOption) (*Session, error) {
	s := &Session{
		id:      id,
		sched:   sched,
		factory: factory,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", id)

	content, err := NewSequence(sched, factory, steps,
		WithGroupID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("nova:session:"+id))),
		WithParent(s.contentView),
		WithSequenceLogger(s.logger),
		WithSequenceLifecycle(s.lifecycle),
	)
	if err != nil {
		return nil, err
	}
	s.content = content
	s.owner = action.NewOwner(id, s.contentView, s.contentVM)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Owner returns the session owner content navigation runs against.
func (s *Session) Owner() *action.Owner { return s.owner }

// Content returns the content sequence.
func (s *Session) Content() *Sequence { return s.content }

// CurrentView returns the visible view as of the last completed navigation.
func (s *Session) CurrentView() ports.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentView
}

// Wizards returns the stacked wizards, bottom first.
func (s *Session) Wizards() []*Wizard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Wizard(nil), s.overlays...)
}

// ActiveWizard returns the top wizard.
func (s *Session) ActiveWizard() (*Wizard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := len(s.overlays); n > 0 {
		return s.overlays[n-1], true
	}
	return nil, false
}

// Active returns the sequence navigation commands currently apply to.
func (s *Session) Active() *Sequence {
	_, seq := s.active()
	return seq
}

// Snapshot describes the content position.
func (s *Session) Snapshot() domain.NavigationSnapshot {
	snap := domain.NavigationSnapshot{
		SessionID: s.id,
		GroupID:   s.content.GroupID(),
		UpdatedAt: time.Now().UTC(),
	}
	if cur := s.content.Current(); cur != nil {
		snap.CurrentNodeID = cur.ID()
		snap.CurrentTitle = cur.Title()
	}
	for _, info := range s.content.PreviousSteps() {
		snap.PreviousSteps = append(snap.PreviousSteps, info.NodeID)
	}
	snap.Wizards = len(s.Wizards())
	return snap
}

// Start enters the first content step.
func (s *Session) Start(ctx context.Context, forward ...domain.Entry) (bool, error) {
	first := s.content.First()
	if first == nil {
		return false, fmt.Errorf("session %s has no steps: %w", s.id, domain.ErrStepNotFound)
	}
	return s.navigate(ctx, s.owner, s.content, first.ID(), forward)
}

// Navigate moves the active sequence to nodeID.
func (s *Session) Navigate(ctx context.Context, nodeID uuid.UUID, forward ...domain.Entry) (bool, error) {
	owner, seq := s.active()
	if _, ok := seq.Find(nodeID); !ok {
		return false, &domain.StepNotFoundError{NodeID: nodeID}
	}
	return s.navigate(ctx, owner, seq, nodeID, forward)
}

// Next moves the active sequence forward.
func (s *Session) Next(ctx context.Context, forward ...domain.Entry) (bool, error) {
	owner, seq := s.active()
	target, ok := seq.NextTarget()
	if !ok {
		return false, nil
	}
	return s.navigate(ctx, owner, seq, target.ID(), forward)
}

// Previous moves the active sequence to the top of its back-stack.
func (s *Session) Previous(ctx context.Context, forward ...domain.Entry) (bool, error) {
	owner, seq := s.active()
	target, ok := seq.PreviousTarget()
	if !ok {
		return false, nil
	}
	return s.navigate(ctx, owner, seq, target.ID(), forward)
}

// StackWizard stacks a wizard whose result is handed to the parent
// view-model's ReturnToUseCase. It returns once the first step is entered.
func (s *Session) StackWizard(ctx context.Context, title string, steps []domain.StepInfo, opts ...WizardOption) (*Wizard, error) {
	var sink stack.Sink = stack.Discard
	if r := s.returner(); r != nil {
		sink = stack.CallbackSink(r)
	} else {
		s.logger.WarnContext(ctx, "no use case to return to, wizard result will be discarded", "wizard", title)
	}
	return s.stack(ctx, title, steps, sink, opts)
}

// StackAndWait stacks a wizard and blocks until it returns. It yields the
// forwardable entries of the Return action, including Cancelled. Typically
// called from an action's Execute phase; never from the affinity thread.
func (s *Session) StackAndWait(ctx context.Context, title string, steps []domain.StepInfo, opts ...WizardOption) ([]domain.Entry, error) {
	h := stack.NewHandle[[]domain.Entry]()
	defer h.Close()

	if _, err := s.stack(ctx, title, steps, stack.HandleSink(h), opts); err != nil {
		return nil, err
	}
	return h.WaitContext(ctx)
}

// Cancel returns from the top wizard with Cancelled=true.
func (s *Session) Cancel(ctx context.Context) (bool, error) {
	return s.returnFrom(ctx, true, nil)
}

// Finish validates the current wizard step and returns from the top wizard
// with entries and Cancelled=false.
func (s *Session) Finish(ctx context.Context, entries ...domain.Entry) (bool, error) {
	return s.returnFrom(ctx, false, entries)
}

// Resume restores the content position saved in the journal.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.journal == nil {
		return false, errors.New("navigation: resume without a journal")
	}
	snap, err := s.journal.Load(ctx, s.id)
	if err != nil {
		return false, err
	}
	if _, ok := s.content.Find(snap.CurrentNodeID); !ok {
		return false, &domain.StepNotFoundError{NodeID: snap.CurrentNodeID}
	}
	ok, err := s.navigate(ctx, s.owner, s.content, snap.CurrentNodeID, nil)
	if err != nil || !ok {
		return ok, err
	}
	if err := s.content.RestoreBackStack(ctx, snap.PreviousSteps); err != nil {
		return false, err
	}
	s.save(ctx)
	return true, nil
}

// Close cancels every stacked wizard and disposes all views.
func (s *Session) Close(ctx context.Context) error {
	return affinity.Invoke(ctx, s.sched.Dispatcher(), func() error {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		s.closed = true
		overlays := s.overlays
		s.overlays = nil
		s.currentView = nil
		s.mu.Unlock()

		cancelled := []domain.Entry{domain.NewEntry(domain.KeyCancelled, true, true)}
		for i := len(overlays) - 1; i >= 0; i-- {
			w := overlays[i]
			w.dispose()
			w.overlay.Dispose()
			w.sink.Deliver(ctx, cancelled)
		}
		s.content.dispose()
		s.logger.InfoContext(ctx, "session closed")
		return nil
	})
}

func (s *Session) active() (*action.Owner, *Sequence) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := len(s.overlays); n > 0 {
		top := s.overlays[n-1]
		return top.owner, top.Sequence
	}
	return s.owner, s.content
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) navigate(ctx context.Context, owner *action.Owner, seq *Sequence, target uuid.UUID, forward []domain.Entry) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	if seq != s.content {
		// A stacking action may be holding a worker until the wizard returns.
		ctx = s.sched.Nest(ctx)
	}
	res, err := s.sched.Run(ctx, owner, &navigateAction{session: s, seq: seq, target: target, forward: forward}, nil)
	if err != nil {
		return false, err
	}
	return res.Succeeded(), res.Err
}

func (s *Session) stack(ctx context.Context, title string, steps []domain.StepInfo, sink stack.Sink, opts []WizardOption) (*Wizard, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	opts = append([]WizardOption{WithSequenceOptions(
		WithSequenceLogger(s.logger.With("wizard", title)),
		WithSequenceLifecycle(s.lifecycle),
	)}, opts...)
	w, err := NewWizard(s.sched, s.factory, title, steps, sink, opts...)
	if err != nil {
		return nil, err
	}

	res, err := s.sched.Run(ctx, w.owner, &stackAction{session: s, wizard: w}, nil)
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		if res.Err != nil {
			return nil, fmt.Errorf("stack wizard %q: %w", title, res.Err)
		}
		return nil, fmt.Errorf("stack wizard %q: %w", title, ErrWizardNotEntered)
	}
	return w, nil
}

func (s *Session) returnFrom(ctx context.Context, cancelled bool, entries []domain.Entry) (bool, error) {
	w, ok := s.ActiveWizard()
	if !ok {
		return false, domain.ErrNoActiveWizard
	}
	ac, err := domain.NewActionContext(entries...)
	if err != nil {
		return false, err
	}
	if err := ac.Add(domain.NewEntry(domain.KeyCancelled, cancelled, true)); err != nil {
		return false, err
	}

	res, err := s.sched.Run(s.sched.Nest(ctx), w.owner, &returnAction{session: s, wizard: w, cancelled: cancelled}, ac)
	if err != nil {
		return false, err
	}
	return res.Succeeded(), res.Err
}

// returner finds the view-model a callback-sunk wizard reports to.
func (s *Session) returner() ports.UseCaseReturner {
	if cur := s.content.Current(); cur != nil {
		if r, ok := cur.ViewModel().(ports.UseCaseReturner); ok {
			return r
		}
	}
	if r, ok := s.contentVM.(ports.UseCaseReturner); ok {
		return r
	}
	return nil
}

// visibleView must be called with s.mu held.
func (s *Session) visibleView() ports.View {
	if n := len(s.overlays); n > 0 {
		if cur := s.overlays[n-1].Current(); cur != nil {
			return cur.View()
		}
		return s.overlays[n-1].overlay
	}
	if cur := s.content.Current(); cur != nil {
		return cur.View()
	}
	return s.contentView
}

// refreshView runs on the affinity thread.
func (s *Session) refreshView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentView = s.visibleView()
}

func (s *Session) save(ctx context.Context) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Save(ctx, s.Snapshot()); err != nil {
		s.logger.WarnContext(ctx, "journal save failed", "err", err)
	}
}

func (s *Session) removeOverlay(w *Wizard) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.overlays {
		if o == w {
			s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
			return true
		}
	}
	return false
}

// navigateAction moves one sequence. It is Blocking on its owner.
type navigateAction struct {
	session *Session
	seq     *Sequence
	target  uuid.UUID
	forward []domain.Entry
}

func (a *navigateAction) Kind() domain.ActionKind { return NavigationKind }

func (a *navigateAction) CanExecute(context.Context, *domain.ActionContext) bool {
	return !a.session.isClosed()
}

func (a *navigateAction) Execute(ctx context.Context, _ *domain.ActionContext) (bool, error) {
	ok, err := a.seq.DoStep(ctx, a.target, a.forward...)
	if ok && a.seq == a.session.content {
		a.session.save(ctx)
	}
	return ok, err
}

func (a *navigateAction) ExecuteCompleted(context.Context, *domain.ActionContext) {
	a.session.refreshView()
}

// stackAction overlays a wizard on the visible view and enters its first step.
type stackAction struct {
	session *Session
	wizard  *Wizard
}

func (a *stackAction) Kind() domain.ActionKind { return StackKind }

func (a *stackAction) CanExecute(context.Context, *domain.ActionContext) bool {
	return !a.session.isClosed()
}

func (a *stackAction) Execute(ctx context.Context, _ *domain.ActionContext) (bool, error) {
	s, w := a.session, a.wizard
	dispatcher := s.sched.Dispatcher()

	if err := affinity.Invoke(ctx, dispatcher, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.parent = s.visibleView()
		s.overlays = append(s.overlays, w)
		if p, ok := w.parent.(ports.Suspendable); ok {
			p.Suspend()
		}
		return nil
	}); err != nil {
		return false, err
	}

	ok, err := w.Start(ctx, w.params...)
	if err != nil || !ok {
		_ = affinity.Invoke(ctx, dispatcher, func() error {
			s.removeOverlay(w)
			w.dispose()
			if p, ok := w.parent.(ports.Suspendable); ok {
				p.Resume()
			}
			return nil
		})
		return false, err
	}
	return true, nil
}

func (a *stackAction) ExecuteCompleted(ctx context.Context, _ *domain.ActionContext) {
	a.session.refreshView()
	a.session.logger.InfoContext(ctx, "wizard stacked", "wizard", a.wizard.Title())
}

// returnAction closes the top wizard and delivers its result.
type returnAction struct {
	session   *Session
	wizard    *Wizard
	cancelled bool
}

func (a *returnAction) Kind() domain.ActionKind { return ReturnKind }

func (a *returnAction) CanExecute(context.Context, *domain.ActionContext) bool {
	top, ok := a.session.ActiveWizard()
	if !ok || top != a.wizard {
		return false
	}
	return !a.cancelled || a.wizard.CanCancel()
}

func (a *returnAction) Execute(ctx context.Context, _ *domain.ActionContext) (bool, error) {
	if a.cancelled {
		return true, nil
	}
	cur := a.wizard.Current()
	if cur == nil {
		return true, nil
	}
	res, err := a.session.sched.Run(ctx, cur.owner, leaveAction(cur), nil)
	if err != nil {
		return false, err
	}
	return res.Succeeded(), nil
}

func (a *returnAction) ExecuteCompleted(ctx context.Context, ac *domain.ActionContext) {
	s, w := a.session, a.wizard
	entries := ac.Forwardable()

	s.removeOverlay(w)
	w.dispose()
	if p, ok := w.parent.(ports.Suspendable); ok {
		p.Resume()
	}
	s.refreshView()

	if !w.sink.Deliver(ctx, entries) {
		s.logger.WarnContext(ctx, "wizard result was not accepted", "wizard", w.Title())
	}
	s.logger.InfoContext(ctx, "wizard returned", "wizard", w.Title(), "cancelled", a.cancelled)
}
