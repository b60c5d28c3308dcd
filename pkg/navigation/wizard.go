package navigation

import (
	"context"
	"sync"

	"github.com/aretw0/nova/pkg/action"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/aretw0/nova/pkg/scheduler"
	"github.com/aretw0/nova/pkg/stack"
	"go.uber.org/atomic"
)

// Buttons is the wizard's command projection.
type Buttons struct {
	Previous bool `json:"previous"`
	Next     bool `json:"next"`
	Finish   bool `json:"finish"`
	Cancel   bool `json:"cancel"`
}

// Wizard is a Sequence stacked as an overlay over a parent view. It is the
// view-model of its own owner, so hooks registered for *Wizard observe the
// Stack and Return actions run against it.
type Wizard struct {
	*Sequence

	title     string
	overlay   *overlayView
	owner     *action.Owner
	sink      stack.Sink
	canCancel *atomic.Bool
	params    []domain.Entry
	seqOpts   []SequenceOption

	// parent is the view suspended while the wizard is stacked.
	parent ports.View

	initialized *atomic.Bool
	tracking    *atomic.Bool

	mu      sync.RWMutex
	buttons Buttons
}

// WizardOption configures a Wizard.
type WizardOption func(*Wizard)

// WithCancel sets whether the wizard may be cancelled. Defaults to true.
func WithCancel(allowed bool) WizardOption {
	return func(w *Wizard) {
		w.canCancel.Store(allowed)
	}
}

// WithParameters forwards entries to the Enter of the wizard's first step.
func WithParameters(entries ...domain.Entry) WizardOption {
	return func(w *Wizard) {
		w.params = append(w.params, entries...)
	}
}

// WithSequenceOptions configures the wizard's step sequence.
func WithSequenceOptions(opts ...SequenceOption) WizardOption {
	return func(w *Wizard) {
		w.seqOpts = append(w.seqOpts, opts...)
	}
}

// NewWizard builds a wizard over steps whose result goes to sink.
// The overlay view is the parent of every step view.
func NewWizard(sched *scheduler.Scheduler, factory ports.ViewFactory, title string, steps []domain.StepInfo, sink stack.Sink, opts ...WizardOption) (*Wizard, error) {
	overlay := newOverlayView(title)
	w := &Wizard{
		title:       title,
		overlay:     overlay,
		sink:        sink,
		canCancel:   atomic.NewBool(true),
		initialized: atomic.NewBool(false),
		tracking:    atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sink == nil {
		w.sink = stack.Discard
	}

	seq, err := NewSequence(sched, factory, steps, append(w.seqOpts, WithParent(overlay))...)
	if err != nil {
		return nil, err
	}
	w.Sequence = seq
	w.owner = action.NewOwner(title, overlay, w)
	seq.OnChange(func(context.Context) { w.recompute() })
	w.recompute()
	return w, nil
}

// Title returns the wizard title.
func (w *Wizard) Title() string { return w.title }

// Owner returns the owner Stack, Return and in-wizard navigation actions run against.
func (w *Wizard) Owner() *action.Owner { return w.owner }

// Buttons returns the command set computed at the last step change.
func (w *Wizard) Buttons() Buttons {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.buttons
}

// CanCancel reports whether Cancel is enabled.
func (w *Wizard) CanCancel() bool { return w.canCancel.Load() }

// MarkInitialized is called when the Stack action completes.
func (w *Wizard) MarkInitialized() { w.initialized.Store(true) }

// BeginChangeTracking is called when the Stack action completes.
func (w *Wizard) BeginChangeTracking() { w.tracking.Store(true) }

// Initialized reports whether the wizard finished stacking.
func (w *Wizard) Initialized() bool { return w.initialized.Load() && w.tracking.Load() }

// Closed reports whether the wizard returned.
func (w *Wizard) Closed() bool { return w.owner.Terminated() }

func (w *Wizard) recompute() {
	next := w.CanGoToNextStep()
	b := Buttons{
		Previous: w.CanGoToPreviousStep(),
		Next:     next,
		Finish:   !next,
		Cancel:   w.CanCancel(),
	}
	w.mu.Lock()
	w.buttons = b
	w.mu.Unlock()
}

// overlayView hosts a wizard's step views.
type overlayView struct {
	title    string
	disposed *atomic.Bool
}

func newOverlayView(title string) *overlayView {
	return &overlayView{title: title, disposed: atomic.NewBool(false)}
}

func (v *overlayView) Title() string { return v.title }
func (v *overlayView) IsValid() bool { return !v.disposed.Load() }
func (v *overlayView) Dispose()      { v.disposed.Store(true) }
