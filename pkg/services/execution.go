package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/workflow"
)

// Execution handles triggering, inspecting and cancelling executions. The
// actual stepping is performed by the worker reacting to the events this
// service publishes.
type Execution struct {
	executions *workflow.Executions
	journal    *workflow.Journal
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
}

// NewExecution creates a new execution service.
func NewExecution(executions *workflow.Executions, journal *workflow.Journal, publisher eventbus.EventPublisher, logger *slog.Logger) *Execution {
	return &Execution{
		executions: executions,
		journal:    journal,
		publisher:  publisher,
		logger:     logger.With("module", "execution_service"),
	}
}

// TriggerRequest describes a manual or trigger-sourced execution request.
type TriggerRequest struct {
	WorkflowID string
	LeadID     string
	UserID     string
	Payload    map[string]any
}

// Trigger creates a pending execution pinned to the workflow's latest version
// and publishes ExecutionRequested for the worker to pick up.
func (s *Execution) Trigger(ctx context.Context, req TriggerRequest) (*models.WorkflowExecution, error) {
	if req.LeadID == "" {
		return nil, ErrLeadIDRequired
	}

	execution, err := s.executions.Create(ctx, workflow.CreateRequest{
		WorkflowID: req.WorkflowID,
		LeadID:     req.LeadID,
		UserID:     req.UserID,
		Payload:    req.Payload,
	})
	if err != nil {
		return nil, err
	}

	requested := events.ExecutionRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, req.WorkflowID),
		ExecutionID: execution.ID,
		LeadID:      req.LeadID,
		TriggerData: req.Payload,
	}

	if err := s.publisher.Publish(ctx, req.WorkflowID, requested); err != nil {
		// The execution row exists; the resume poller will pick it up even if
		// the event never lands.
		s.logger.ErrorContext(ctx, "Failed to publish execution requested event",
			"execution_id", execution.ID, "error", err)
	}

	return execution, nil
}

// FetchByID retrieves an execution by its ID.
func (s *Execution) FetchByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return s.executions.Get(ctx, id)
}

// Logs returns the ordered audit trail of an execution.
func (s *Execution) Logs(ctx context.Context, executionID string) ([]*models.WorkflowLog, error) {
	if _, err := s.executions.Get(ctx, executionID); err != nil {
		return nil, err
	}

	return s.journal.Trail(ctx, executionID)
}

// Cancel marks the execution for cooperative cancellation. The walker honours
// the marker at its next visit.
func (s *Execution) Cancel(ctx context.Context, executionID string) error {
	if err := s.executions.RequestCancel(ctx, executionID); err != nil {
		return err
	}

	execution, err := s.executions.Get(ctx, executionID)
	if err != nil {
		return err
	}

	// Nudge the worker so cancellation takes effect without waiting for the
	// next naturally scheduled visit.
	step := events.ExecutionStepAvailable{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
	}

	if err := s.publisher.Publish(ctx, execution.WorkflowID, step); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish cancellation nudge",
			"execution_id", executionID, "error", err)
	}

	return nil
}

// ListByWorkflow returns executions of a workflow.
func (s *Execution) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	executions, err := s.executions.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return executions, nil
}
