package models

import "time"

// ExecutionStatus defines the state machine of a single workflow run:
// pending -> running -> {completed | failed | cancelled}.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// WorkflowExecution is one run of a pinned workflow version against one lead.
// It is mutated exclusively by the graph walker and becomes immutable once
// terminal.
type WorkflowExecution struct {
	ID            string          `json:"id"          validate:"required"`
	WorkflowID    string          `json:"workflow_id" validate:"required"`
	VersionID     string          `json:"version_id"  validate:"required"` // Pinned graph snapshot
	LeadID        string          `json:"lead_id"     validate:"required"`
	Status        ExecutionStatus `json:"status"      validate:"required"`
	Payload       map[string]any  `json:"payload,omitempty"`
	CurrentNodeID *string         `json:"current_node_id,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	UserID        string          `json:"user_id"`
	StepCount     int             `json:"step_count"`
	// CancelRequested is the cooperative pending-cancel marker. The next
	// visit observes it and transitions to cancelled instead of proceeding.
	CancelRequested bool       `json:"cancel_requested"`
	ResumeAt        *time.Time `json:"resume_at,omitempty"` // Set by delay nodes
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	FailedAt        *time.Time `json:"failed_at,omitempty"`
}

// IsTerminal reports whether the execution reached a final status.
func (e *WorkflowExecution) IsTerminal() bool {
	return e.Status.IsTerminal()
}

// MergePayload folds a step result into the accumulated payload.
func (e *WorkflowExecution) MergePayload(update map[string]any) {
	if len(update) == 0 {
		return
	}

	if e.Payload == nil {
		e.Payload = make(map[string]any, len(update))
	}

	for k, v := range update {
		e.Payload[k] = v
	}
}

// PayloadSnapshot returns a shallow copy of the payload safe to hand to log
// entries and node handlers.
func (e *WorkflowExecution) PayloadSnapshot() map[string]any {
	snapshot := make(map[string]any, len(e.Payload))
	for k, v := range e.Payload {
		snapshot[k] = v
	}

	return snapshot
}

// Duration returns the elapsed time between start and the terminal timestamp.
func (e *WorkflowExecution) Duration() time.Duration {
	if e.StartedAt == nil {
		return 0
	}

	end := time.Now().UTC()

	switch {
	case e.CompletedAt != nil:
		end = *e.CompletedAt
	case e.FailedAt != nil:
		end = *e.FailedAt
	}

	return end.Sub(*e.StartedAt)
}
