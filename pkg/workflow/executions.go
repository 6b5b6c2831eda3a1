package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leadflow/leadflow/pkg/lock"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// leadLeaseTTL bounds how long execution creation may hold the per-lead
// lease.
const leadLeaseTTL = 10 * time.Second

// Executions manages execution context lifecycle: creation, advancement and
// terminal transitions. The walker is its only writer once a run started.
type Executions struct {
	persistence persistence.Persistence
	memberships *Memberships
	store       *DefinitionStore
	locks       lock.Locker
	logger      *slog.Logger
}

func NewExecutions(p persistence.Persistence, memberships *Memberships, store *DefinitionStore, locks lock.Locker, logger *slog.Logger) *Executions {
	return &Executions{
		persistence: p,
		memberships: memberships,
		store:       store,
		locks:       locks,
		logger:      logger.With("module", "executions"),
	}
}

// CreateRequest describes a trigger firing for one lead.
type CreateRequest struct {
	WorkflowID string `validate:"required"`
	LeadID     string `validate:"required"`
	UserID     string
	Payload    map[string]any
}

// Create starts a new pending execution pinned to the workflow's latest
// version. It fails with ErrWorkflowNotExecutable when the workflow status or
// type forbids execution, with ErrLeadNotEligible when the membership is
// paused or removed, and with ErrLeadExecutionInFlight when another run for
// the same (workflow, lead) pair is active.
func (e *Executions) Create(ctx context.Context, req CreateRequest) (*models.WorkflowExecution, error) {
	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", req.WorkflowID, err)
	}

	if !workflow.IsExecutable() {
		return nil, fmt.Errorf("workflow %s in status %s (type %s): %w",
			workflow.ID, workflow.Status, workflow.Type, ErrWorkflowNotExecutable)
	}

	membership, err := e.memberships.GetOrCreate(ctx, req.WorkflowID, req.LeadID)
	if err != nil {
		return nil, err
	}

	if !membership.IsEligibleToRun() {
		return nil, fmt.Errorf("lead %s in workflow %s is %s: %w",
			req.LeadID, req.WorkflowID, membership.Status, ErrLeadNotEligible)
	}

	// Serialize creation per (workflow, lead) so two concurrent triggers
	// cannot both pass the in-flight check.
	lease, err := e.locks.Acquire(ctx, lock.LeadKey(req.WorkflowID, req.LeadID), leadLeaseTTL)
	if err != nil {
		if lock.IsHeld(err) {
			return nil, ErrLeadExecutionInFlight
		}

		return nil, fmt.Errorf("failed to acquire lead lease: %w", err)
	}

	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			e.logger.ErrorContext(ctx, "Failed to release lead lease", "error", releaseErr)
		}
	}()

	existing, err := e.persistence.ExecutionRepository().RunningExecutionForLead(ctx, req.WorkflowID, req.LeadID)
	if err != nil && !persistence.IsExecutionNotFound(err) {
		return nil, fmt.Errorf("failed to check in-flight executions: %w", err)
	}

	if existing != nil {
		return nil, fmt.Errorf("execution %s: %w", existing.ID, ErrLeadExecutionInFlight)
	}

	version, err := e.store.Latest(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	entry, ok := version.EntryNode()
	if !ok {
		return nil, &ValidationError{WorkflowID: req.WorkflowID, Err: ErrEntryNodeMissing}
	}

	payload := make(map[string]any, len(req.Payload))
	for k, v := range req.Payload {
		payload[k] = v
	}

	entryID := entry.ID
	execution := &models.WorkflowExecution{
		ID:            generateExecutionID(),
		WorkflowID:    req.WorkflowID,
		VersionID:     version.ID,
		LeadID:        req.LeadID,
		Status:        models.ExecutionStatusPending,
		Payload:       payload,
		CurrentNodeID: &entryID,
		UserID:        req.UserID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	e.logger.InfoContext(ctx, "Created execution",
		"execution_id", execution.ID,
		"workflow_id", req.WorkflowID,
		"lead_id", req.LeadID,
		"version", version.VersionNumber)

	return execution, nil
}

// Advance atomically moves the execution to the next node and folds the
// updated payload in. The caller (the walker) holds the execution lease, so
// there is at most one writer per execution.
func (e *Executions) Advance(ctx context.Context, execution *models.WorkflowExecution, nextNodeID string, updatedPayload map[string]any) error {
	if execution.IsTerminal() {
		return fmt.Errorf("advance %s: %w", execution.ID, ErrExecutionTerminal)
	}

	execution.CurrentNodeID = &nextNodeID
	execution.MergePayload(updatedPayload)

	return e.persistence.ExecutionRepository().Save(ctx, execution)
}

// Complete transitions the execution to completed. Idempotent: completing an
// already terminal execution is a no-op, so a retry after a crash between
// persist and acknowledge is harmless.
func (e *Executions) Complete(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now
	execution.CurrentNodeID = nil
	execution.ResumeAt = nil

	return e.persistence.ExecutionRepository().Save(ctx, execution)
}

// Fail transitions the execution to failed with the recorded message.
// Idempotent like Complete.
func (e *Executions) Fail(ctx context.Context, execution *models.WorkflowExecution, message string) error {
	if execution.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.ErrorMessage = message
	execution.FailedAt = &now
	execution.ResumeAt = nil

	return e.persistence.ExecutionRepository().Save(ctx, execution)
}

// RequestCancel sets the cooperative pending-cancel marker. The next visit
// observes it and transitions to cancelled; cancellation is never preemptive
// mid-step. Idempotent, and a no-op on terminal executions.
func (e *Executions) RequestCancel(ctx context.Context, executionID string) error {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.IsTerminal() || execution.CancelRequested {
		return nil
	}

	execution.CancelRequested = true

	return e.persistence.ExecutionRepository().Save(ctx, execution)
}

// Get loads an execution by ID.
func (e *Executions) Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// ListByWorkflow returns all executions of a workflow.
func (e *Executions) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().ListByWorkflow(ctx, workflowID)
}

func generateExecutionID() string {
	return "exec-" + uuid.New().String()
}
