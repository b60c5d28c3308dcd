// Package action defines the unit of work run by the scheduler and the
// lifecycle state machine (Flow) that drives one action instance.
package action

import (
	"context"

	"github.com/aretw0/nova/pkg/domain"
)

// Action is one unit of work. Its Kind decides hook matching and queuing.
//
// CanExecute and ExecuteCompleted run on the owner's affinity thread.
// Execute may run on a background worker.
type Action interface {
	Kind() domain.ActionKind
	CanExecute(ctx context.Context, ac *domain.ActionContext) bool
	Execute(ctx context.Context, ac *domain.ActionContext) (bool, error)
	ExecuteCompleted(ctx context.Context, ac *domain.ActionContext)
}

// Func adapts closures to Action. Nil functions default to
// "allowed", "succeeded" and "nothing to do" respectively.
type Func struct {
	ActionKind   domain.ActionKind
	CanExecuteFn func(ctx context.Context, ac *domain.ActionContext) bool
	ExecuteFn    func(ctx context.Context, ac *domain.ActionContext) (bool, error)
	CompletedFn  func(ctx context.Context, ac *domain.ActionContext)
}

func (f *Func) Kind() domain.ActionKind {
	return f.ActionKind
}

func (f *Func) CanExecute(ctx context.Context, ac *domain.ActionContext) bool {
	if f.CanExecuteFn == nil {
		return true
	}
	return f.CanExecuteFn(ctx, ac)
}

func (f *Func) Execute(ctx context.Context, ac *domain.ActionContext) (bool, error) {
	if f.ExecuteFn == nil {
		return true, nil
	}
	return f.ExecuteFn(ctx, ac)
}

func (f *Func) ExecuteCompleted(ctx context.Context, ac *domain.ActionContext) {
	if f.CompletedFn != nil {
		f.CompletedFn(ctx, ac)
	}
}
