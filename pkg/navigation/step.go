package navigation

import (
	"github.com/aretw0/nova/pkg/action"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/google/uuid"
)

// Step is a StepInfo linked into a Sequence together with its lazily created
// view. The view is built once and reused, so going back and forth returns
// the same instance.
type Step struct {
	info domain.StepInfo
	prev *Step
	next *Step

	// set once on the affinity thread
	view  ports.View
	vm    ports.ViewModel
	owner *action.Owner
}

// Info returns the step descriptor.
func (s *Step) Info() domain.StepInfo { return s.info }

// ID returns the node id.
func (s *Step) ID() uuid.UUID { return s.info.NodeID }

// Title returns the step title.
func (s *Step) Title() string { return s.info.Title }

// Next returns the following step or nil.
func (s *Step) Next() *Step { return s.next }

// Prev returns the preceding step or nil.
func (s *Step) Prev() *Step { return s.prev }

// View returns the cached view, nil until first entered.
func (s *Step) View() ports.View { return s.view }

// ViewModel returns the cached view-model, nil until first entered.
func (s *Step) ViewModel() ports.ViewModel { return s.vm }

// Owner returns the owner Enter and Leave actions run against.
func (s *Step) Owner() *action.Owner { return s.owner }

// Created reports whether the view exists.
func (s *Step) Created() bool { return s.owner != nil }

func (s *Step) dispose() {
	if s.view != nil && s.view.IsValid() {
		s.view.Dispose()
	}
}
