package ports

import (
	"context"

	"github.com/aretw0/nova/pkg/domain"
)

// View is the minimal contract the core needs from a rendered view.
type View interface {
	Title() string
	IsValid() bool
	Dispose()
}

// ViewModel is implemented by every step's view-model.
// Enter and Leave return false to veto the transition; an error is treated
// the same way and reported.
type ViewModel interface {
	Enter(ctx context.Context, params *domain.ActionContext) (bool, error)
	Leave(ctx context.Context, params *domain.ActionContext) (bool, error)
}

// ViewFactory instantiates and wires a view/view-model pair for a step.
type ViewFactory interface {
	CreateView(ctx context.Context, parent View, step domain.StepInfo) (View, ViewModel, error)
}

// ViewFactoryFunc adapts a function to ViewFactory.
type ViewFactoryFunc func(ctx context.Context, parent View, step domain.StepInfo) (View, ViewModel, error)

func (f ViewFactoryFunc) CreateView(ctx context.Context, parent View, step domain.StepInfo) (View, ViewModel, error) {
	return f(ctx, parent, step)
}

// Initializer is implemented by view-models that react to Creational actions.
type Initializer interface {
	MarkInitialized()
	BeginChangeTracking()
}

// Suspendable is implemented by views that can be paused while a wizard is stacked over them.
type Suspendable interface {
	Suspend()
	Resume()
}

// UseCaseReturner receives the entries of a wizard stacked without a waiting caller.
type UseCaseReturner interface {
	ReturnToUseCase(ctx context.Context, entries []domain.Entry)
}
