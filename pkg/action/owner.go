package action

import (
	"github.com/aretw0/nova/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Owner is the view/view-model pair an action runs against.
// It is the unit of queuing exclusivity in the scheduler.
type Owner struct {
	id         uuid.UUID
	name       string
	view       ports.View
	viewModel  any
	terminated *atomic.Bool
}

// NewOwner pairs a view with its view-model. Either may be nil.
func NewOwner(name string, view ports.View, viewModel any) *Owner {
	return &Owner{
		id:         uuid.New(),
		name:       name,
		view:       view,
		viewModel:  viewModel,
		terminated: atomic.NewBool(false),
	}
}

// ID returns the owner's identity.
func (o *Owner) ID() uuid.UUID { return o.id }

// Name returns the descriptive name given at construction.
func (o *Owner) Name() string { return o.name }

// View returns the owner's view.
func (o *Owner) View() ports.View { return o.view }

// ViewModel returns the owner's view-model.
func (o *Owner) ViewModel() any { return o.viewModel }

// Terminated reports whether a Terminating action disposed this owner.
func (o *Owner) Terminated() bool {
	if o.terminated.Load() {
		return true
	}
	return o.view != nil && !o.view.IsValid()
}

// terminate disposes the view exactly once.
func (o *Owner) terminate() {
	if !o.terminated.CompareAndSwap(false, true) {
		return
	}
	if o.view != nil {
		o.view.Dispose()
	}
}

// initialize applies the Creational effect to the view-model.
func (o *Owner) initialize() {
	if init, ok := o.viewModel.(ports.Initializer); ok {
		init.MarkInitialized()
		init.BeginChangeTracking()
	}
}
