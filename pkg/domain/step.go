package domain

import (
	"sort"

	"github.com/google/uuid"
)

// StepInfo is the immutable descriptor of a navigable step.
type StepInfo struct {
	NodeID        uuid.UUID `json:"node_id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	ViewKind      string    `json:"view" yaml:"view"`
	ViewModelKind string    `json:"viewmodel" yaml:"viewmodel"`
	Parameters    []Entry   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// NewStepInfo creates a descriptor with a fresh node ID.
func NewStepInfo(title, viewKind, viewModelKind string, params ...Entry) StepInfo {
	return StepInfo{
		NodeID:        uuid.New(),
		Title:         title,
		ViewKind:      viewKind,
		ViewModelKind: viewModelKind,
		Parameters:    params,
	}
}

// Module is one entry of the descriptor list a shell is seeded from.
type Module struct {
	Name  string     `json:"name" yaml:"name"`
	Rank  int        `json:"rank" yaml:"rank"`
	Steps []StepInfo `json:"steps" yaml:"steps"`
}

// OrderSteps flattens modules by ascending rank. Modules of equal rank keep
// their supplied order.
func OrderSteps(modules []Module) []StepInfo {
	ordered := make([]Module, len(modules))
	copy(ordered, modules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Rank < ordered[j].Rank
	})

	var steps []StepInfo
	for _, m := range ordered {
		steps = append(steps, m.Steps...)
	}
	return steps
}
