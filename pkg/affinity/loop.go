// Package affinity provides the owner's affinity thread: a single goroutine
// that runs posted functions one at a time, in posting order.
package affinity

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"go.uber.org/atomic"
)

// Loop is a ports.Dispatcher backed by one goroutine and an unbounded queue.
// Post never blocks, so functions running on the loop may post more work.
type Loop struct {
	name   string
	logger *slog.Logger
	fault  ports.FaultHandler

	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
	done   chan struct{}

	started   *atomic.Bool
	stopped   *atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Option configures a Loop.
type Option func(*Loop)

// WithName labels the loop in logs.
func WithName(name string) Option {
	return func(l *Loop) {
		l.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithFaultHandler receives panics recovered from posted functions.
func WithFaultHandler(handler ports.FaultHandler) Option {
	return func(l *Loop) {
		l.fault = handler
	}
}

// NewLoop creates a loop. Call Start before posting work is expected to run.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		name:    "affinity",
		logger:  logging.NewNop(),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		started: atomic.NewBool(false),
		stopped: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the loop goroutine. Subsequent calls are no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		l.started.Store(true)
		l.wg.Add(1)
		go l.run()
	})
}

// Post queues fn. It fails with domain.ErrSchedulerStopped once Stop was called.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	l.mu.Lock()
	if l.stopped.Load() {
		l.mu.Unlock()
		return fmt.Errorf("%s: %w", l.name, domain.ErrSchedulerStopped)
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued functions not yet started.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Stop rejects new work, runs what is already queued and waits for the
// goroutine to exit.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped.Store(true)
		l.mu.Unlock()
		close(l.done)
	})
	if l.started.Load() {
		l.wg.Wait()
	}
}

func (l *Loop) run() {
	defer l.wg.Done()
	l.logger.Debug("affinity loop started", "loop", l.name)

	for {
		select {
		case <-l.signal:
			l.drain()
		case <-l.done:
			l.drain()
			l.logger.Debug("affinity loop stopped", "loop", l.name)
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.call(fn)
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s: posted function panicked: %v\n%s", l.name, r, debug.Stack())
			if l.fault != nil {
				l.fault(context.Background(), err)
				return
			}
			l.logger.Error("affinity fault", "loop", l.name, "err", err)
		}
	}()
	fn()
}

// Invoke posts fn to d and waits for it to return. It must not be called
// from d's own thread: the wait would never end.
func Invoke(ctx context.Context, d ports.Dispatcher, fn func() error) error {
	_, err := Call(ctx, d, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Call is Invoke for functions that produce a value.
func Call[T any](ctx context.Context, d ports.Dispatcher, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	var zero T
	ch := make(chan result, 1)

	err := d.Post(func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("marshaled call panicked: %v", r)
			}
			ch <- res
		}()
		res.value, res.err = fn()
	})
	if err != nil {
		return zero, err
	}

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
