package models

import "time"

// LeadStatus is the membership state of a lead within a workflow's
// automation, independent of any single execution.
type LeadStatus string

const (
	LeadStatusActive    LeadStatus = "active"
	LeadStatusPaused    LeadStatus = "paused"
	LeadStatusRemoved   LeadStatus = "removed"
	LeadStatusCompleted LeadStatus = "completed"
)

// WorkflowLead associates a lead with a workflow. At most one membership
// exists per (WorkflowID, LeadID) pair. Operators mutate it concurrently
// with the walker's reads, so writes carry an optimistic Revision check.
type WorkflowLead struct {
	ID          string         `json:"id"          validate:"required"`
	WorkflowID  string         `json:"workflow_id" validate:"required"`
	LeadID      string         `json:"lead_id"     validate:"required"`
	Status      LeadStatus     `json:"status"      validate:"required,oneof=active paused removed completed"`
	ContextData map[string]any `json:"context_data,omitempty"` // State carried across runs, e.g. last node reached
	Revision    int64          `json:"revision"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsEligibleToRun reports whether the walker may start or advance executions
// for this membership. Checked at the top of every visit.
func (l *WorkflowLead) IsEligibleToRun() bool {
	return l.Status == LeadStatusActive
}
