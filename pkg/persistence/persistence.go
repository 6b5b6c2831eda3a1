// Package persistence provides the data storage abstraction for workflows,
// executions, logs, leads and versions.
package persistence

import (
	"context"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

// Persistence exposes the repositories the engine reads and writes through.
// Storage technology is an implementation detail behind this interface.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	NodeRepository() NodeRepository
	ExecutionRepository() ExecutionRepository
	LogRepository() LogRepository
	LeadRepository() LeadRepository
	VersionRepository() VersionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters workflow listings.
type ListWorkflowsOptions struct {
	Status          *models.WorkflowStatus
	Owner           string
	IncludeArchived bool
}

// WorkflowRepository stores workflow definitions and metadata.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, opts ListWorkflowsOptions) ([]*models.Workflow, error)
	// Delete archives the workflow. Workflows referenced by executions are
	// never hard-deleted.
	Delete(ctx context.Context, id string) error
}

// NodeRepository is a read-only view over the live workflow graph, used by
// authoring surfaces. Executions resolve nodes through VersionRepository
// snapshots instead.
type NodeRepository interface {
	GetNode(ctx context.Context, workflowID, nodeID string) (*models.WorkflowNode, error)
	GetNodesByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowNode, error)
}

// ExecutionRepository stores execution state.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
	ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error)
	// RunningExecutionForLead returns the single non-terminal execution for a
	// (workflow, lead) pair, or ErrExecutionNotFound when none is in flight.
	RunningExecutionForLead(ctx context.Context, workflowID, leadID string) (*models.WorkflowExecution, error)
	// ListDueForResume returns non-terminal executions whose ResumeAt is at
	// or before now, for the worker's resume poller.
	ListDueForResume(ctx context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error)
}

// LogRepository is the append-only audit trail. Append assigns Sequence and
// must never fail silently; a failed append aborts the in-progress step.
type LogRepository interface {
	Append(ctx context.Context, entry *models.WorkflowLog) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.WorkflowLog, error)
}

// LeadRepository stores workflow-lead memberships. Save enforces the
// optimistic Revision check: a stale write returns ErrLeadRevisionConflict.
type LeadRepository interface {
	Save(ctx context.Context, lead *models.WorkflowLead) error
	GetByID(ctx context.Context, id string) (*models.WorkflowLead, error)
	GetByWorkflowAndLead(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowLead, error)
}

// VersionRepository stores immutable definition snapshots.
type VersionRepository interface {
	Save(ctx context.Context, version *models.WorkflowVersion) error
	GetByID(ctx context.Context, id string) (*models.WorkflowVersion, error)
	GetByWorkflowAndNumber(ctx context.Context, workflowID string, number int) (*models.WorkflowVersion, error)
	LatestByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowVersion, error)
}
