package scheduler

import (
	"context"
	"sync"

	"github.com/aretw0/nova/pkg/action"
)

// Pending is the future of a submitted action.
type Pending struct {
	flow   *action.Flow
	done   chan struct{}
	once   sync.Once
	result action.Result
}

func newPending(flow *action.Flow) *Pending {
	return &Pending{flow: flow, done: make(chan struct{})}
}

// Flow returns the lifecycle driven for this submission.
func (p *Pending) Flow() *action.Flow { return p.flow }

// Done is closed once the action reached a terminal state.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the outcome and whether it is final.
func (p *Pending) Result() (action.Result, bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return action.Result{}, false
	}
}

// Wait blocks until the action finished or ctx ends. Cancelling ctx stops the
// wait, not the action. It must not be called on the affinity thread.
func (p *Pending) Wait(ctx context.Context) (action.Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return action.Result{}, ctx.Err()
	}
}

func (p *Pending) resolve(res action.Result) {
	p.once.Do(func() {
		p.result = res
		close(p.done)
	})
}
