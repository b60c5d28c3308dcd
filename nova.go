package nova

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/affinity"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/aretw0/nova/pkg/navigation"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/aretw0/nova/pkg/scheduler"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the shell version, overridden at link time by release builds.
var Version = "0.1.0-dev"

var (
	// ErrSessionExists is returned by Open when the id is already in use.
	ErrSessionExists = errors.New("session already open")

	// ErrNoDescriptors is returned by Open when the shell has no descriptor source.
	ErrNoDescriptors = errors.New("no descriptor source configured")

	// ErrShellClosed is returned once Close has been called.
	ErrShellClosed = errors.New("shell closed")
)

// Shell is the high-level entry point. It owns the affinity loop, the
// scheduler and the hook repository, and keeps a registry of open sessions.
type Shell struct {
	dispatcher ports.Dispatcher
	loop       *affinity.Loop
	sched      *scheduler.Scheduler
	hooks      *hooks.Repository
	metrics    *scheduler.Metrics
	factory    ports.ViewFactory
	source     ports.DescriptorSource
	journal    ports.JournalStore
	registerer prometheus.Registerer
	workers    int
	fault      ports.FaultHandler
	lifecycle  domain.LifecycleHooks
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*navigation.Session
	closed   bool
}

// Option defines a functional option for configuring the Shell.
type Option func(*Shell)

// WithDispatcher runs affinity-bound phases on an existing UI thread instead
// of a private loop.
func WithDispatcher(d ports.Dispatcher) Option {
	return func(s *Shell) {
		s.dispatcher = d
	}
}

// WithWorkers sets the background worker pool size.
func WithWorkers(n int) Option {
	return func(s *Shell) {
		s.workers = n
	}
}

// WithHooks injects the hook repository. By default the shell creates a
// private one whose faults are reported through the scheduler.
func WithHooks(repo *hooks.Repository) Option {
	return func(s *Shell) {
		s.hooks = repo
	}
}

// WithViewFactory sets the factory creating step views.
func WithViewFactory(f ports.ViewFactory) Option {
	return func(s *Shell) {
		s.factory = f
	}
}

// WithDescriptors sets the source of the modules sessions are seeded from.
func WithDescriptors(src ports.DescriptorSource) Option {
	return func(s *Shell) {
		s.source = src
	}
}

// WithJournal persists and resumes session positions.
func WithJournal(store ports.JournalStore) Option {
	return func(s *Shell) {
		s.journal = store
	}
}

// WithRegisterer registers scheduler metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Shell) {
		s.registerer = reg
	}
}

// WithFaultHandler receives contained failures.
func WithFaultHandler(handler ports.FaultHandler) Option {
	return func(s *Shell) {
		s.fault = handler
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(s *Shell) {
		s.lifecycle = h
	}
}

// WithLogger sets a custom structured logger for the shell.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shell) {
		s.logger = logger
	}
}

// New initializes a Shell. A view factory is required.
func New(opts ...Option) (*Shell, error) {
	s := &Shell{
		workers:  scheduler.DefaultWorkers,
		logger:   logging.NewNop(),
		sessions: make(map[string]*navigation.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		return nil, errors.New("nova: a view factory is required")
	}
	if s.workers < 1 {
		return nil, fmt.Errorf("nova: need at least 1 worker, got %d", s.workers)
	}

	if s.dispatcher == nil {
		s.loop = affinity.NewLoop(
			affinity.WithName("nova"),
			affinity.WithLogger(s.logger),
			affinity.WithFaultHandler(s.reportLoopFault),
		)
		s.loop.Start()
		s.dispatcher = s.loop
	}

	if s.hooks == nil {
		s.hooks = hooks.NewRepository(
			hooks.WithLogger(s.logger),
			hooks.WithFaultHandler(func(ctx context.Context, err error) {
				s.sched.ReportFault(ctx, scheduler.FaultSourceHook, err)
			}),
		)
	}

	schedOpts := []scheduler.Option{
		scheduler.WithWorkers(s.workers),
		scheduler.WithHooks(s.hooks),
		scheduler.WithLogger(s.logger),
		scheduler.WithLifecycle(s.lifecycle),
	}
	if s.fault != nil {
		schedOpts = append(schedOpts, scheduler.WithFaultHandler(s.fault))
	}
	if s.registerer != nil {
		s.metrics = scheduler.NewMetrics(s.registerer)
		schedOpts = append(schedOpts, scheduler.WithMetrics(s.metrics))
	}
	s.sched = scheduler.New(s.dispatcher, schedOpts...)

	return s, nil
}

// Scheduler returns the action scheduler.
func (s *Shell) Scheduler() *scheduler.Scheduler { return s.sched }

// Hooks returns the hook repository.
func (s *Shell) Hooks() *hooks.Repository { return s.hooks }

// Dispatcher returns the affinity dispatcher.
func (s *Shell) Dispatcher() ports.Dispatcher { return s.dispatcher }

// Modules returns the descriptor list.
func (s *Shell) Modules(ctx context.Context) ([]domain.Module, error) {
	if s.source == nil {
		return nil, ErrNoDescriptors
	}
	modules, err := s.source.Modules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	return modules, nil
}

// Open seeds a session from the descriptors and enters its first step, or
// the journaled step when the journal knows the session.
func (s *Shell) Open(ctx context.Context, sessionID string, contentView ports.View, contentVM any) (*navigation.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	modules, err := s.Modules(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShellClosed
	}
	if _, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	opts := []navigation.SessionOption{
		navigation.WithContent(contentView, contentVM),
		navigation.WithLogger(s.logger),
		navigation.WithLifecycle(s.lifecycle),
	}
	if s.journal != nil {
		opts = append(opts, navigation.WithJournal(s.journal))
	}
	sess, err := navigation.NewSession(sessionID, s.sched, s.factory, domain.OrderSteps(modules), opts...)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	ok, err := s.enter(ctx, sess)
	if err == nil && !ok {
		err = fmt.Errorf("session %s: first step refused entry", sessionID)
	}
	if err != nil {
		s.forget(sessionID)
		_ = sess.Close(ctx)
		return nil, err
	}
	s.logger.InfoContext(ctx, "session opened", "session_id", sessionID, "steps", len(sess.Content().Steps()))
	return sess, nil
}

func (s *Shell) enter(ctx context.Context, sess *navigation.Session) (bool, error) {
	if s.journal == nil {
		return sess.Start(ctx)
	}
	ok, err := sess.Resume(ctx)
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrStepNotFound):
		s.logger.DebugContext(ctx, "no usable journal, starting fresh", "session_id", sess.ID(), "err", err)
		return sess.Start(ctx)
	default:
		return false, err
	}
}

// Session returns an open session.
func (s *Shell) Session(sessionID string) (*navigation.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// Sessions returns the ids of the open sessions, sorted.
func (s *Shell) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Navigate moves a session to nodeID. It blocks until the navigation action
// completes and must not be called from the affinity thread.
func (s *Shell) Navigate(ctx context.Context, sessionID string, nodeID uuid.UUID, forward ...domain.Entry) (bool, error) {
	sess, ok := s.Session(sessionID)
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return sess.Navigate(ctx, nodeID, forward...)
}

// Snapshot returns the current position of a session.
func (s *Shell) Snapshot(sessionID string) (domain.NavigationSnapshot, error) {
	sess, ok := s.Session(sessionID)
	if !ok {
		return domain.NavigationSnapshot{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return sess.Snapshot(), nil
}

// CloseSession cancels the session's wizards, disposes its views and removes
// it from the registry. The journal entry is kept for a later Open.
func (s *Shell) CloseSession(ctx context.Context, sessionID string) error {
	sess, ok := s.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	s.forget(sessionID)
	return sess.Close(ctx)
}

// Close closes every session, then stops the scheduler and the private loop.
func (s *Shell) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*navigation.Session)
	s.mu.Unlock()

	var errs []error
	for id, sess := range sessions {
		if err := sess.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
	}
	s.sched.Stop()
	if s.loop != nil {
		s.loop.Stop()
	}
	return errors.Join(errs...)
}

func (s *Shell) forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Shell) reportLoopFault(ctx context.Context, err error) {
	if s.sched == nil {
		s.logger.ErrorContext(ctx, "affinity loop fault", "err", err)
		return
	}
	s.sched.ReportFault(ctx, scheduler.FaultSourceScheduler, err)
}
