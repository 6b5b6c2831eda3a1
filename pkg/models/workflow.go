// Package models defines the core domain models for lead automation workflows.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft       WorkflowStatus = "draft"       // Editable, not executable
	WorkflowStatusActive      WorkflowStatus = "active"      // Executable
	WorkflowStatusPaused      WorkflowStatus = "paused"      // Editable, not executable
	WorkflowStatusArchived    WorkflowStatus = "archived"    // Soft-deleted, never executable
	WorkflowStatusMaintenance WorkflowStatus = "maintenance" // Temporarily not executable, not editable
)

// WorkflowType is a closed set governing what capabilities a workflow's
// definition may use.
type WorkflowType string

const (
	WorkflowTypeAutomation WorkflowType = "automation" // Full graph: triggers, conditions, actions, scheduling
	WorkflowTypeDrip       WorkflowType = "drip"       // Linear sequences with delays, no branching
	WorkflowTypeBroadcast  WorkflowType = "broadcast"  // One-shot action sequences
	WorkflowTypeBlueprint  WorkflowType = "blueprint"  // Library template, never executable
)

// Capabilities describes what a workflow type supports.
type Capabilities struct {
	Triggers   bool
	Conditions bool
	Actions    bool
	Scheduling bool
	Parallel   bool
}

// Capabilities returns the capability set for the workflow type.
func (t WorkflowType) Capabilities() Capabilities {
	switch t {
	case WorkflowTypeAutomation:
		return Capabilities{Triggers: true, Conditions: true, Actions: true, Scheduling: true, Parallel: true}
	case WorkflowTypeDrip:
		return Capabilities{Triggers: true, Actions: true, Scheduling: true}
	case WorkflowTypeBroadcast:
		return Capabilities{Actions: true}
	case WorkflowTypeBlueprint:
		return Capabilities{}
	default:
		return Capabilities{}
	}
}

// WorkflowMetrics is the read model produced by the asynchronous metrics
// aggregator. It is never mutated in place on the workflow row.
type WorkflowMetrics struct {
	ExecutionCount int64         `json:"execution_count"`
	SuccessCount   int64         `json:"success_count"`
	FailureCount   int64         `json:"failure_count"`
	TotalDuration  time.Duration `json:"total_duration"`
}

// AverageDuration returns the mean execution duration, or zero when no
// execution has finished yet.
func (m WorkflowMetrics) AverageDuration() time.Duration {
	finished := m.SuccessCount + m.FailureCount
	if finished == 0 {
		return 0
	}

	return m.TotalDuration / time.Duration(finished)
}

// Workflow represents a named automation definition executed against leads.
type Workflow struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"     validate:"required,min=3"`
	Status     WorkflowStatus      `json:"status"   validate:"required"`
	Type       WorkflowType        `json:"type"     validate:"required,oneof=automation drip broadcast blueprint"`
	Priority   int                 `json:"priority" validate:"min=0,max=10"`
	Definition *WorkflowDefinition `json:"definition"`
	Version    int                 `json:"version"` // Number of the latest snapshotted version
	Triggers   []*WorkflowTrigger  `json:"triggers,omitempty"`
	Variables  map[string]any      `json:"variables,omitempty"`
	Owner      string              `json:"owner"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	ArchivedAt *time.Time          `json:"archived_at,omitempty"`
}

// statusTransitions enumerates the allowed workflow status transitions.
var statusTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowStatusDraft:       {WorkflowStatusActive, WorkflowStatusArchived},
	WorkflowStatusActive:      {WorkflowStatusPaused, WorkflowStatusMaintenance, WorkflowStatusArchived},
	WorkflowStatusPaused:      {WorkflowStatusActive, WorkflowStatusArchived},
	WorkflowStatusMaintenance: {WorkflowStatusActive, WorkflowStatusArchived},
	WorkflowStatusArchived:    {},
}

// CanTransitionTo reports whether the workflow may move to the target status.
func (w *Workflow) CanTransitionTo(target WorkflowStatus) bool {
	for _, allowed := range statusTransitions[w.Status] {
		if allowed == target {
			return true
		}
	}

	return false
}

// IsEditable reports whether the definition may be mutated. Only draft and
// paused workflows accept definition edits; running executions are isolated
// from edits through version pinning.
func (w *Workflow) IsEditable() bool {
	return w.Status == WorkflowStatusDraft || w.Status == WorkflowStatusPaused
}

// IsExecutable reports whether new executions may be created.
func (w *Workflow) IsExecutable() bool {
	return w.Status == WorkflowStatusActive && w.Type.Capabilities().Actions
}

// MaxConcurrentExecutions derives the concurrency ceiling from priority.
// Priority 0 workflows run one execution at a time.
func (w *Workflow) MaxConcurrentExecutions() int {
	if w.Priority <= 0 {
		return 1
	}

	return w.Priority * 4
}

// WorkflowTrigger describes an external condition that starts an execution.
type WorkflowTrigger struct {
	ID            string         `json:"id"   validate:"required"`
	Name          string         `json:"name" validate:"required"`
	Type          string         `json:"type" validate:"required,oneof=event schedule"`
	Configuration map[string]any `json:"configuration,omitempty"`
}
