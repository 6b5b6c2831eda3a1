package services

import (
	"context"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/workflow"
)

// Lead handles workflow-lead membership operations. Pausing or removing a
// lead makes the walker halt that lead's executions at their next visit.
type Lead struct {
	memberships *workflow.Memberships
	leads       persistence.LeadRepository
	executions  persistence.ExecutionRepository
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewLead creates a new lead membership service.
func NewLead(memberships *workflow.Memberships, leads persistence.LeadRepository, executions persistence.ExecutionRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *Lead {
	return &Lead{
		memberships: memberships,
		leads:       leads,
		executions:  executions,
		publisher:   publisher,
		logger:      logger.With("module", "lead_service"),
	}
}

// Enroll creates (or returns) an active membership for the lead.
func (s *Lead) Enroll(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	if leadID == "" {
		return nil, ErrLeadIDRequired
	}

	return s.memberships.GetOrCreate(ctx, workflowID, leadID)
}

// Fetch returns the membership for the (workflow, lead) pair.
func (s *Lead) Fetch(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	return s.leads.GetByWorkflowAndLead(ctx, workflowID, leadID)
}

// ListByWorkflow returns all memberships of a workflow.
func (s *Lead) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowLead, error) {
	return s.leads.ListByWorkflow(ctx, workflowID)
}

// Pause suspends the lead. Running executions halt silently at their next
// visit and resume when the lead is resumed.
func (s *Lead) Pause(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	lead, err := s.memberships.Pause(ctx, workflowID, leadID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LeadPaused{
		BaseEvent: events.NewBaseEvent(events.LeadPausedEvent, workflowID),
		LeadID:    leadID,
	}, workflowID)

	return lead, nil
}

// Resume reactivates a paused lead and nudges the worker so halted executions
// get revisited.
func (s *Lead) Resume(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	lead, err := s.memberships.Resume(ctx, workflowID, leadID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LeadResumed{
		BaseEvent: events.NewBaseEvent(events.LeadResumedEvent, workflowID),
		LeadID:    leadID,
	}, workflowID)

	s.redispatch(ctx, workflowID, leadID)

	return lead, nil
}

// redispatch re-enqueues the lead's in-flight execution, if any. An execution
// halted by a pause only moves again when a new step event arrives.
func (s *Lead) redispatch(ctx context.Context, workflowID, leadID string) {
	execution, err := s.executions.RunningExecutionForLead(ctx, workflowID, leadID)
	if err != nil {
		if !persistence.IsExecutionNotFound(err) {
			s.logger.ErrorContext(ctx, "Failed to look up in-flight execution",
				"workflow_id", workflowID, "lead_id", leadID, "error", err)
		}

		return
	}

	s.publish(ctx, events.ExecutionStepAvailable{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, workflowID),
		ExecutionID: execution.ID,
	}, workflowID)
}

// Remove takes the lead out of the workflow permanently.
func (s *Lead) Remove(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	lead, err := s.memberships.Remove(ctx, workflowID, leadID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LeadRemoved{
		BaseEvent: events.NewBaseEvent(events.LeadRemovedEvent, workflowID),
		LeadID:    leadID,
	}, workflowID)

	return lead, nil
}

func (s *Lead) publish(ctx context.Context, event eventbus.Event, key string) {
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish lead event",
			"event_type", event.GetType(), "error", err)
	}
}
