package navigation

import (
	"context"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
)

// stepAction runs a view-model transition (Enter or Leave) as an action on
// the step's owner.
type stepAction struct {
	kind domain.ActionKind
	step *Step
	call func(vm ports.ViewModel, ctx context.Context, ac *domain.ActionContext) (bool, error)
}

func enterAction(step *Step) *stepAction {
	return &stepAction{kind: EnterKind, step: step, call: ports.ViewModel.Enter}
}

func leaveAction(step *Step) *stepAction {
	return &stepAction{kind: LeaveKind, step: step, call: ports.ViewModel.Leave}
}

func (a *stepAction) Kind() domain.ActionKind { return a.kind }

func (a *stepAction) CanExecute(context.Context, *domain.ActionContext) bool {
	return a.step.owner != nil && !a.step.owner.Terminated()
}

func (a *stepAction) Execute(ctx context.Context, ac *domain.ActionContext) (bool, error) {
	if a.step.vm == nil {
		return true, nil
	}
	return a.call(a.step.vm, ctx, ac)
}

func (a *stepAction) ExecuteCompleted(context.Context, *domain.ActionContext) {}

// stepParams builds the context of an Enter: forwarded entries first, then
// the step's own parameters for keys not already forwarded.
func stepParams(step *Step, forward []domain.Entry) (*domain.ActionContext, error) {
	ac, err := domain.NewActionContext(forward...)
	if err != nil {
		return nil, err
	}
	for _, p := range step.info.Parameters {
		if ac.ContainsKey(p.Key) {
			continue
		}
		if err := ac.Add(p); err != nil {
			return nil, err
		}
	}
	return ac, nil
}
