// Package scheduler admits actions per owner and drives their lifecycles.
//
// Every owner has one logical queue. A Blocking action runs alone: it starts
// only once nothing else runs for its owner, and nothing starts until it is
// done. Other actions run their Execute phase concurrently on a worker pool,
// while their Prepare and Complete phases are posted to the affinity
// dispatcher. Completions are therefore serialized in the order the Execute
// phases finished.
//
// Actions submitted from inside a running Execute phase are nested: the
// caller holds a worker while it waits for them, so their Execute phase runs
// on an unbounded pool instead.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/action"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 10

// Outcomes recorded by nova_actions_total.
const (
	OutcomeDone     = "done"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

// Scheduler is the ActionScheduler.
type Scheduler struct {
	dispatcher ports.Dispatcher
	pool       pond.Pool
	nested     pond.Pool
	workers    int
	hooks      *hooks.Repository
	fault      ports.FaultHandler
	logger     *slog.Logger
	lifecycle  domain.LifecycleHooks
	metrics    *Metrics

	mu      sync.Mutex
	queues  map[uuid.UUID]*ownerQueue
	stopped *atomic.Bool
}

type ownerQueue struct {
	refs     int
	blocking bool
	running  int
	pending  []*job
}

type job struct {
	ctx      context.Context
	owner    *action.Owner
	flow     *action.Flow
	pending  *Pending
	blocking bool
	nested   bool
	finished *atomic.Bool
}

type workerKey struct{}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers bounds how many top-level Execute phases run at once. An
// action blocked on a stacked wizard keeps its worker until the wizard
// returns.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPool uses an existing pond pool instead of creating one.
func WithPool(pool pond.Pool) Option {
	return func(s *Scheduler) {
		s.pool = pool
	}
}

// WithHooks sets the hook repository. Defaults to hooks.Default().
func WithHooks(repo *hooks.Repository) Option {
	return func(s *Scheduler) {
		s.hooks = repo
	}
}

// WithFaultHandler receives every contained failure.
func WithFaultHandler(handler ports.FaultHandler) Option {
	return func(s *Scheduler) {
		s.fault = handler
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithLifecycle forwards flow state changes to h.
func WithLifecycle(h domain.LifecycleHooks) Option {
	return func(s *Scheduler) {
		s.lifecycle = h
	}
}

// WithMetrics records scheduler metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a scheduler posting affinity-bound phases to dispatcher.
func New(dispatcher ports.Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		dispatcher: dispatcher,
		workers:    DefaultWorkers,
		logger:     logging.NewNop(),
		queues:     make(map[uuid.UUID]*ownerQueue),
		stopped:    atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hooks == nil {
		s.hooks = hooks.Default()
	}
	if s.pool == nil {
		s.pool = pond.NewPool(s.workers)
	}
	s.nested = pond.NewPool(0)
	return s
}

// Nest marks ctx so actions submitted with it run their Execute phase
// outside the bounded pool. Execute phases already receive a nested context.
// Use it for work an action holding a worker is waiting on.
func (s *Scheduler) Nest(ctx context.Context) context.Context {
	return context.WithValue(ctx, workerKey{}, s)
}

func (s *Scheduler) isNested(ctx context.Context) bool {
	owner, _ := ctx.Value(workerKey{}).(*Scheduler)
	return owner == s
}

// Hooks returns the hook repository used for dispatch.
func (s *Scheduler) Hooks() *hooks.Repository { return s.hooks }

// Dispatcher returns the affinity dispatcher.
func (s *Scheduler) Dispatcher() ports.Dispatcher { return s.dispatcher }

// ReportFault routes a contained failure to the fault handler.
func (s *Scheduler) ReportFault(ctx context.Context, source string, err error) {
	s.metrics.fault(source)
	if s.fault != nil {
		s.fault(ctx, err)
		return
	}
	s.logger.ErrorContext(ctx, "fault", "source", source, "err", err)
}

// Submit queues act for owner. ac may be nil.
func (s *Scheduler) Submit(ctx context.Context, owner *action.Owner, act action.Action, ac *domain.ActionContext) (*Pending, error) {
	if s.stopped.Load() {
		return nil, domain.ErrSchedulerStopped
	}
	if owner == nil {
		return nil, errors.New("scheduler: nil owner")
	}
	if owner.Terminated() {
		return nil, fmt.Errorf("submit %s to %s: %w", act.Kind().Name, owner.Name(), domain.ErrOwnerTerminated)
	}

	flow := action.NewFlow(owner, act, ac,
		action.WithHooks(s.hooks),
		action.WithLogger(s.logger),
		action.WithLifecycle(s.lifecycle),
		action.WithFaultHandler(func(ctx context.Context, err error) {
			s.ReportFault(ctx, FaultSourceAction, err)
		}),
	)
	j := &job{
		ctx:      context.WithoutCancel(ctx),
		owner:    owner,
		flow:     flow,
		pending:  newPending(flow),
		blocking: act.Kind().Is(domain.Blocking),
		nested:   s.isNested(ctx),
		finished: atomic.NewBool(false),
	}

	s.mu.Lock()
	q, ok := s.queues[owner.ID()]
	if !ok {
		q = &ownerQueue{}
		s.queues[owner.ID()] = q
	}
	q.refs++
	admitted := q.admit(j)
	if !admitted {
		q.pending = append(q.pending, j)
	}
	s.mu.Unlock()

	if admitted {
		s.start(j)
	} else {
		s.metrics.queued(1)
		s.logger.DebugContext(ctx, "action queued", "action", act.Kind().Name, "owner", owner.Name())
	}
	return j.pending, nil
}

// Run submits act and waits for its terminal state. It must not be called on
// the affinity thread.
func (s *Scheduler) Run(ctx context.Context, owner *action.Owner, act action.Action, ac *domain.ActionContext) (action.Result, error) {
	p, err := s.Submit(ctx, owner, act, ac)
	if err != nil {
		return action.Result{}, err
	}
	return p.Wait(ctx)
}

// Idle reports whether nothing is running or queued for owner.
func (s *Scheduler) Idle(owner *action.Owner) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.queues[owner.ID()]
	return !busy
}

// Stop rejects new submissions and waits for running Execute phases.
func (s *Scheduler) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.pool.StopAndWait()
	s.nested.StopAndWait()
}

// admit starts j right away when the queue allows it.
func (q *ownerQueue) admit(j *job) bool {
	if q.blocking || len(q.pending) > 0 {
		return false
	}
	if j.blocking && q.running > 0 {
		return false
	}
	q.running++
	q.blocking = j.blocking
	return true
}

// next pops the queued jobs that may start now.
func (q *ownerQueue) next() []*job {
	var started []*job
	for len(q.pending) > 0 && !q.blocking {
		j := q.pending[0]
		if j.blocking && q.running > 0 {
			break
		}
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.running++
		q.blocking = j.blocking
		started = append(started, j)
	}
	return started
}

func (s *Scheduler) start(j *job) {
	if err := s.dispatcher.Post(func() { s.guard(j, s.prepare) }); err != nil {
		s.abort(j, err)
	}
}

func (s *Scheduler) prepare(j *job) {
	if j.owner.Terminated() {
		s.abort(j, fmt.Errorf("run %s on %s: %w", j.flow.Kind().Name, j.owner.Name(), domain.ErrOwnerTerminated))
		return
	}
	if !j.flow.Prepare(j.ctx) {
		s.complete(j)
		return
	}

	pool := s.pool
	if j.nested {
		pool = s.nested
	}
	err := pool.Go(func() {
		began := time.Now()
		j.flow.Execute(s.Nest(j.ctx))
		s.metrics.observeExecute(j.flow.Kind().Name, time.Since(began))

		if err := s.dispatcher.Post(func() { s.guard(j, s.complete) }); err != nil {
			s.abort(j, err)
		}
	})
	if err != nil {
		s.abort(j, fmt.Errorf("execute %s: %w", j.flow.Kind().Name, domain.ErrSchedulerStopped))
	}
}

func (s *Scheduler) complete(j *job) {
	res := j.flow.Complete(j.ctx)
	s.finish(j, res)
}

// abort resolves a job that could not run all of its phases. After hooks
// still observe the attempt.
func (s *Scheduler) abort(j *job, err error) {
	j.flow.DispatchAfter(j.ctx)
	res := j.flow.Result()
	if res.Err == nil {
		res.Err = err
	}
	s.logger.WarnContext(j.ctx, "action aborted", "action", j.flow.Kind().Name, "owner", j.owner.Name(), "err", err)
	s.finishWith(j, res, OutcomeAborted)
}

// guard keeps a panic in an affinity-bound phase from stalling the queue.
func (s *Scheduler) guard(j *job, phase func(*job)) {
	defer func() {
		if r := recover(); r != nil {
			err := &action.PanicError{
				Action: j.flow.Kind().Name,
				Phase:  "scheduler",
				Value:  r,
				Stack:  debug.Stack(),
			}
			s.ReportFault(j.ctx, FaultSourceScheduler, err)
			s.abort(j, err)
		}
	}()
	phase(j)
}

func (s *Scheduler) finish(j *job, res action.Result) {
	outcome := OutcomeDone
	switch {
	case res.Rejected():
		outcome = OutcomeRejected
	case res.Failed():
		outcome = OutcomeFailed
	case !res.Succeeded():
		outcome = OutcomeAborted
	}
	s.finishWith(j, res, outcome)
}

func (s *Scheduler) finishWith(j *job, res action.Result, outcome string) {
	if j.finished.Swap(true) {
		return
	}
	s.metrics.observeOutcome(j.flow.Kind().Name, outcome)
	s.logger.DebugContext(j.ctx, "action finished",
		"action", j.flow.Kind().Name, "owner", j.owner.Name(), "state", res.State)

	s.mu.Lock()
	q := s.queues[j.owner.ID()]
	q.running--
	if j.blocking {
		q.blocking = false
	}
	q.refs--
	started := q.next()
	if q.refs == 0 {
		delete(s.queues, j.owner.ID())
	}
	s.mu.Unlock()

	j.pending.resolve(res)
	for _, next := range started {
		s.metrics.queued(-1)
		s.start(next)
	}
}
