// Package testutils holds recording fakes of the view ports shared by package tests.
package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/google/uuid"
)

// View is a recording ports.View that also implements ports.Suspendable.
type View struct {
	mu        sync.Mutex
	title     string
	disposed  int
	suspended bool
	suspends  int
}

// NewView creates a valid view.
func NewView(title string) *View {
	return &View{title: title}
}

func (v *View) Title() string { return v.title }

func (v *View) IsValid() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disposed == 0
}

func (v *View) Dispose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposed++
}

func (v *View) Suspend() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.suspended = true
	v.suspends++
}

func (v *View) Resume() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.suspended = false
}

// Disposals returns how many times Dispose was called.
func (v *View) Disposals() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disposed
}

// Suspended reports whether the view is currently suspended.
func (v *View) Suspended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.suspended
}

// ViewModel is a recording ports.ViewModel. Enter and Leave succeed until
// configured otherwise.
type ViewModel struct {
	mu          sync.Mutex
	name        string
	enterOK     bool
	leaveOK     bool
	enterErr    error
	calls       []string
	lastParams  []domain.Entry
	initialized bool
	tracking    bool
	returns     [][]domain.Entry
}

// NewViewModel creates a view-model whose Enter and Leave succeed.
func NewViewModel(name string) *ViewModel {
	return &ViewModel{name: name, enterOK: true, leaveOK: true}
}

// Name returns the name given at construction.
func (m *ViewModel) Name() string { return m.name }

// SetEnter configures the result of subsequent Enter calls.
func (m *ViewModel) SetEnter(ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enterOK, m.enterErr = ok, err
}

// SetLeave configures the result of subsequent Leave calls.
func (m *ViewModel) SetLeave(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveOK = ok
}

func (m *ViewModel) Enter(_ context.Context, params *domain.ActionContext) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "enter")
	m.lastParams = params.Entries()
	return m.enterOK, m.enterErr
}

func (m *ViewModel) Leave(_ context.Context, params *domain.ActionContext) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "leave")
	return m.leaveOK, nil
}

func (m *ViewModel) MarkInitialized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
}

func (m *ViewModel) BeginChangeTracking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracking = true
}

func (m *ViewModel) ReturnToUseCase(_ context.Context, entries []domain.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns = append(m.returns, entries)
}

// Calls returns the recorded Enter/Leave calls in order.
func (m *ViewModel) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Count returns how many times call ("enter" or "leave") was recorded.
func (m *ViewModel) Count(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// LastParams returns the entries passed to the latest Enter.
func (m *ViewModel) LastParams() []domain.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastParams
}

// Initialized reports whether a Creational action completed on this view-model.
func (m *ViewModel) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized && m.tracking
}

// Returns lists every ReturnToUseCase delivery.
func (m *ViewModel) Returns() [][]domain.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.Entry(nil), m.returns...)
}

// Factory is a ports.ViewFactory producing recording fakes and counting creations.
type Factory struct {
	mu      sync.Mutex
	created map[uuid.UUID]int
	views   map[uuid.UUID]*View
	models  map[uuid.UUID]*ViewModel
	parents map[uuid.UUID]ports.View
	// Fail makes CreateView return this error when set.
	Fail error
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		created: make(map[uuid.UUID]int),
		views:   make(map[uuid.UUID]*View),
		models:  make(map[uuid.UUID]*ViewModel),
		parents: make(map[uuid.UUID]ports.View),
	}
}

func (f *Factory) CreateView(_ context.Context, parent ports.View, step domain.StepInfo) (ports.View, ports.ViewModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, nil, f.Fail
	}
	f.created[step.NodeID]++
	view := NewView(step.Title)
	vm, ok := f.models[step.NodeID]
	if !ok {
		vm = NewViewModel(step.Title)
		f.models[step.NodeID] = vm
	}
	f.views[step.NodeID] = view
	f.parents[step.NodeID] = parent
	return view, vm, nil
}

// Created returns how many views were built for nodeID.
func (f *Factory) Created(nodeID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[nodeID]
}

// Model returns the view-model for nodeID, creating it ahead of CreateView so
// tests can configure it before the step is entered.
func (f *Factory) Model(nodeID uuid.UUID) *ViewModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	vm, ok := f.models[nodeID]
	if !ok {
		vm = NewViewModel(nodeID.String())
		f.models[nodeID] = vm
	}
	return vm
}

// View returns the latest view built for nodeID.
func (f *Factory) View(nodeID uuid.UUID) *View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[nodeID]
}

// Parent returns the parent view passed when nodeID was created.
func (f *Factory) Parent(nodeID uuid.UUID) ports.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parents[nodeID]
}
