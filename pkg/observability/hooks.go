package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/nova/pkg/domain"
)

// LogHooks logs flow transitions at debug and committed steps at info.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFlowState: func(ctx context.Context, ev *domain.FlowEvent) {
			logger.DebugContext(ctx, "action state",
				"flow_id", ev.FlowID,
				"owner", ev.OwnerID,
				"action", ev.Action,
				"from", ev.From,
				"state", ev.State,
			)
		},
		OnStepChanged: func(ctx context.Context, ev *domain.StepEvent) {
			logger.InfoContext(ctx, "step changed",
				"group_id", ev.GroupID,
				"from", ev.From,
				"node_id", ev.To,
				"back", ev.Back,
			)
		},
	}
}

// Combine calls every hook set in order. Nil callbacks are skipped.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var flow []func(context.Context, *domain.FlowEvent)
	var step []func(context.Context, *domain.StepEvent)
	for _, h := range sets {
		if h.OnFlowState != nil {
			flow = append(flow, h.OnFlowState)
		}
		if h.OnStepChanged != nil {
			step = append(step, h.OnStepChanged)
		}
	}

	var out domain.LifecycleHooks
	if len(flow) > 0 {
		out.OnFlowState = func(ctx context.Context, ev *domain.FlowEvent) {
			for _, fn := range flow {
				fn(ctx, ev)
			}
		}
	}
	if len(step) > 0 {
		out.OnStepChanged = func(ctx context.Context, ev *domain.StepEvent) {
			for _, fn := range step {
				fn(ctx, ev)
			}
		}
	}
	return out
}
