package stack

import (
	"context"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"go.uber.org/atomic"
)

// Sink receives the entries of a returning wizard. Exactly one sink is bound
// to each stacked wizard and it is delivered to at most once.
type Sink interface {
	Deliver(ctx context.Context, entries []domain.Entry) bool
}

type handleSink struct {
	h *Handle[[]domain.Entry]
}

// HandleSink delivers into a handle a blocked caller is waiting on.
func HandleSink(h *Handle[[]domain.Entry]) Sink {
	return handleSink{h: h}
}

func (s handleSink) Deliver(_ context.Context, entries []domain.Entry) bool {
	return s.h.Release(entries)
}

type callbackSink struct {
	target    ports.UseCaseReturner
	delivered *atomic.Bool
}

// CallbackSink delivers through target.ReturnToUseCase.
func CallbackSink(target ports.UseCaseReturner) Sink {
	return &callbackSink{target: target, delivered: atomic.NewBool(false)}
}

func (s *callbackSink) Deliver(ctx context.Context, entries []domain.Entry) bool {
	if s.target == nil || s.delivered.Swap(true) {
		return false
	}
	s.target.ReturnToUseCase(ctx, entries)
	return true
}

// Discard drops the result. Used when the stacking side has no interest in it.
var Discard Sink = discard{}

type discard struct{}

func (discard) Deliver(context.Context, []domain.Entry) bool { return true }

// Cancelled reports whether returned entries carry Cancelled=true.
func Cancelled(entries []domain.Entry) bool {
	e, ok := domain.LookupEntry(entries, domain.KeyCancelled)
	if !ok {
		return false
	}
	v, _ := e.Value.(bool)
	return v
}
