package domain

import (
	"time"

	"github.com/google/uuid"
)

// NavigationSnapshot is the persisted position of a session's content sequence.
type NavigationSnapshot struct {
	SessionID     string      `json:"session_id"`
	GroupID       uuid.UUID   `json:"group_id"`
	CurrentNodeID uuid.UUID   `json:"current_node_id"`
	CurrentTitle  string      `json:"current_title,omitempty"`
	PreviousSteps []uuid.UUID `json:"previous_steps"`
	Wizards       int         `json:"wizards"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
