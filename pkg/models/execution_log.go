package models

import "time"

// LogEventType classifies workflow log entries.
type LogEventType string

const (
	LogEventEntered         LogEventType = "entered"
	LogEventActionResult    LogEventType = "action_result"
	LogEventConditionResult LogEventType = "condition_result"
	LogEventError           LogEventType = "error"
)

// WorkflowLog is one append-only audit entry tied to an execution. Entries
// are never mutated or deleted; together they form the execution's
// replayable history. Sequence is assigned by the repository and gives a
// total order even when two entries share a timestamp.
type WorkflowLog struct {
	ID          string          `json:"id"           validate:"required"`
	ExecutionID string          `json:"execution_id" validate:"required"`
	WorkflowID  string          `json:"workflow_id"`
	NodeID      string          `json:"node_id"`
	EventType   LogEventType    `json:"event_type"   validate:"required,oneof=entered action_result condition_result error"`
	Message     string          `json:"message,omitempty"`
	Payload     map[string]any  `json:"payload,omitempty"` // Payload snapshot at write time
	Status      ExecutionStatus `json:"status"`
	Sequence    int64           `json:"sequence"`
	CreatedAt   time.Time       `json:"created_at"`
}
