package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FlowEvent reports a lifecycle state change of one action.
type FlowEvent struct {
	Timestamp time.Time `json:"timestamp"`
	FlowID    uuid.UUID `json:"flow_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Action    string    `json:"action"`
	From      string    `json:"from"`
	State     string    `json:"state"`
}

// StepEvent reports a committed navigation.
type StepEvent struct {
	Timestamp time.Time `json:"timestamp"`
	GroupID   uuid.UUID `json:"group_id"`
	From      uuid.UUID `json:"from"`
	To        uuid.UUID `json:"to"`
	Back      bool      `json:"back"`
}

// LifecycleHooks defines callbacks for observability.
type LifecycleHooks struct {
	OnFlowState   func(context.Context, *FlowEvent)
	OnStepChanged func(context.Context, *StepEvent)
}
