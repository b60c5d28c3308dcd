package descriptor

import (
	"fmt"

	"github.com/aretw0/nova/internal/validator"
	"github.com/aretw0/nova/pkg/domain"
)

// Builder assembles modules in code.
type Builder struct {
	modules []*ModuleBuilder
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{}
}

// Module starts a module. If the name already exists, it returns the
// existing builder.
func (b *Builder) Module(name string, rank int) *ModuleBuilder {
	for _, mb := range b.modules {
		if mb.module.Name == name {
			return mb
		}
	}
	mb := &ModuleBuilder{
		module:  domain.Module{Name: name, Rank: rank},
		builder: b,
	}
	b.modules = append(b.modules, mb)
	return mb
}

// Build validates and returns the modules in definition order.
func (b *Builder) Build() ([]domain.Module, error) {
	modules := make([]domain.Module, 0, len(b.modules))
	for _, mb := range b.modules {
		mod := mb.module
		mod.Steps = nil
		for _, sb := range mb.steps {
			mod.Steps = append(mod.Steps, sb.info(mod.Name))
		}
		modules = append(modules, mod)
	}
	if err := validator.ValidateModules(modules); err != nil {
		return nil, fmt.Errorf("failed to build modules: %w", err)
	}
	return modules, nil
}

// Source builds the modules as a Static source.
func (b *Builder) Source() (Static, error) {
	modules, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Static(modules), nil
}

// ModuleBuilder configures one module.
type ModuleBuilder struct {
	module  domain.Module
	steps   []*StepBuilder
	builder *Builder
}

// Step appends a step to the module.
func (m *ModuleBuilder) Step(title, view, viewModel string) *StepBuilder {
	sb := &StepBuilder{
		title:     title,
		view:      view,
		viewModel: viewModel,
		module:    m,
	}
	m.steps = append(m.steps, sb)
	return sb
}

// Module starts another module.
func (m *ModuleBuilder) Module(name string, rank int) *ModuleBuilder {
	return m.builder.Module(name, rank)
}

// Build builds the whole descriptor set.
func (m *ModuleBuilder) Build() ([]domain.Module, error) {
	return m.builder.Build()
}

// StepBuilder configures one step.
type StepBuilder struct {
	id        string
	title     string
	view      string
	viewModel string
	params    []domain.Entry
	module    *ModuleBuilder
}

// ID sets the step id. UUIDs are used as-is, slugs are hashed.
func (s *StepBuilder) ID(id string) *StepBuilder {
	s.id = id
	return s
}

// Param adds a parameter passed to the step's Enter.
func (s *StepBuilder) Param(key string, value any) *StepBuilder {
	s.params = append(s.params, domain.NewEntry(key, value, false))
	return s
}

// Forward adds a forwardable parameter.
func (s *StepBuilder) Forward(key string, value any) *StepBuilder {
	s.params = append(s.params, domain.NewEntry(key, value, true))
	return s
}

// Step appends a sibling step to the same module.
func (s *StepBuilder) Step(title, view, viewModel string) *StepBuilder {
	return s.module.Step(title, view, viewModel)
}

// Module starts another module.
func (s *StepBuilder) Module(name string, rank int) *ModuleBuilder {
	return s.module.Module(name, rank)
}

// Build builds the whole descriptor set.
func (s *StepBuilder) Build() ([]domain.Module, error) {
	return s.module.Build()
}

func (s *StepBuilder) info(module string) domain.StepInfo {
	return domain.StepInfo{
		NodeID:        NodeID(module, s.id, s.title),
		Title:         s.title,
		ViewKind:      s.view,
		ViewModelKind: s.viewModel,
		Parameters:    append([]domain.Entry(nil), s.params...),
	}
}
