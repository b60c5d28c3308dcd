// Package console provides line-oriented views and view-models so a session
// can be driven from a terminal without a UI toolkit.
package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/aretw0/nova/pkg/stack"
	"go.uber.org/atomic"
)

// Printer serializes writes from the affinity thread and the workers.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter wraps w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w}
}

// Printf writes one formatted line.
func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

// View is a console view. Suspended views are shown dimmed in the prompt.
type View struct {
	title     string
	parent    ports.View
	disposed  *atomic.Bool
	suspended *atomic.Bool
}

// NewView creates a view titled title under parent.
func NewView(title string, parent ports.View) *View {
	return &View{
		title:     title,
		parent:    parent,
		disposed:  atomic.NewBool(false),
		suspended: atomic.NewBool(false),
	}
}

func (v *View) Title() string { return v.title }

func (v *View) IsValid() bool { return !v.disposed.Load() }

func (v *View) Dispose() { v.disposed.Store(true) }

func (v *View) Suspend() { v.suspended.Store(true) }

func (v *View) Resume() { v.suspended.Store(false) }

// Suspended reports whether a wizard is stacked over the view.
func (v *View) Suspended() bool { return v.suspended.Load() }

// Parent returns the view this one was created under.
func (v *View) Parent() ports.View { return v.parent }

// ViewModel announces Enter and Leave on the printer and keeps the last
// parameters it was entered with.
type ViewModel struct {
	step    domain.StepInfo
	printer *Printer

	mu     sync.Mutex
	params []domain.Entry
	visits int
}

// NewViewModel creates the view-model of step.
func NewViewModel(step domain.StepInfo, printer *Printer) *ViewModel {
	return &ViewModel{step: step, printer: printer}
}

func (m *ViewModel) Enter(_ context.Context, params *domain.ActionContext) (bool, error) {
	m.mu.Lock()
	m.params = params.Entries()
	m.visits++
	m.mu.Unlock()

	m.printer.Printf("> %s %s", m.step.Title, FormatEntries(params.Entries()))
	return true, nil
}

func (m *ViewModel) Leave(context.Context, *domain.ActionContext) (bool, error) {
	return true, nil
}

// Params returns the entries of the last Enter.
func (m *ViewModel) Params() []domain.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Entry(nil), m.params...)
}

// Visits counts successful entries.
func (m *ViewModel) Visits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visits
}

// Shell is the content view-model. It receives the results of wizards
// stacked without a waiting caller.
type Shell struct {
	printer *Printer

	mu      sync.Mutex
	results [][]domain.Entry
}

// NewShell creates the content view-model.
func NewShell(printer *Printer) *Shell {
	return &Shell{printer: printer}
}

func (s *Shell) ReturnToUseCase(_ context.Context, entries []domain.Entry) {
	s.mu.Lock()
	s.results = append(s.results, entries)
	s.mu.Unlock()

	if stack.Cancelled(entries) {
		s.printer.Printf("wizard cancelled")
		return
	}
	s.printer.Printf("wizard finished %s", FormatEntries(entries))
}

// Results returns every delivered wizard result.
func (s *Shell) Results() [][]domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.Entry(nil), s.results...)
}

// Factory creates console view pairs for steps.
type Factory struct {
	printer *Printer
}

// NewFactory returns a ports.ViewFactory writing to printer.
func NewFactory(printer *Printer) *Factory {
	return &Factory{printer: printer}
}

func (f *Factory) CreateView(_ context.Context, parent ports.View, step domain.StepInfo) (ports.View, ports.ViewModel, error) {
	return NewView(step.Title, parent), NewViewModel(step, f.printer), nil
}

// FormatEntries renders entries as a sorted key=value list in braces.
func FormatEntries(entries []domain.Entry) string {
	if len(entries) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s=%v", e.Key, e.Value))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, " ") + "}"
}
