package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// Memberships tracks which leads participate in which workflows, decoupled
// from any single execution. Operator mutations go through here; the walker
// only reads eligibility. Writes use the repository's optimistic revision
// check so a pause issued mid-step takes effect on the next visit instead of
// corrupting one in progress.
type Memberships struct {
	leads  persistence.LeadRepository
	logger *slog.Logger
}

func NewMemberships(leads persistence.LeadRepository, logger *slog.Logger) *Memberships {
	return &Memberships{
		leads:  leads,
		logger: logger.With("module", "memberships"),
	}
}

// GetOrCreate returns the membership for the pair, creating an active one
// when none exists.
func (m *Memberships) GetOrCreate(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	lead, err := m.leads.GetByWorkflowAndLead(ctx, workflowID, leadID)
	if err == nil {
		return lead, nil
	}

	if !persistence.IsLeadNotFound(err) {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}

	now := time.Now().UTC()
	lead = &models.WorkflowLead{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		LeadID:     leadID,
		Status:     models.LeadStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := m.leads.Save(ctx, lead); err != nil {
		// Lost a creation race; the winner's row is authoritative.
		if persistence.IsLeadAlreadyExists(err) || persistence.IsLeadRevisionConflict(err) {
			return m.leads.GetByWorkflowAndLead(ctx, workflowID, leadID)
		}

		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	m.logger.InfoContext(ctx, "Created workflow membership", "workflow_id", workflowID, "lead_id", leadID)

	return lead, nil
}

// IsEligibleToRun reports whether the walker may start or advance executions
// for the pair. A missing membership means the lead was never enrolled, so
// it is not eligible.
func (m *Memberships) IsEligibleToRun(ctx context.Context, workflowID, leadID string) (bool, error) {
	lead, err := m.leads.GetByWorkflowAndLead(ctx, workflowID, leadID)
	if err != nil {
		if persistence.IsLeadNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to check eligibility: %w", err)
	}

	return lead.IsEligibleToRun(), nil
}

// Pause halts automation for the lead without touching in-flight executions.
func (m *Memberships) Pause(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	return m.transition(ctx, workflowID, leadID, models.LeadStatusPaused)
}

// Resume re-enables automation for a paused lead.
func (m *Memberships) Resume(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	return m.transition(ctx, workflowID, leadID, models.LeadStatusActive)
}

// Remove takes the lead out of the workflow's automation permanently.
func (m *Memberships) Remove(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	return m.transition(ctx, workflowID, leadID, models.LeadStatusRemoved)
}

// Complete marks the membership finished, typically after a terminal node.
func (m *Memberships) Complete(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	return m.transition(ctx, workflowID, leadID, models.LeadStatusCompleted)
}

func (m *Memberships) transition(ctx context.Context, workflowID, leadID string, target models.LeadStatus) (*models.WorkflowLead, error) {
	lead, err := m.leads.GetByWorkflowAndLead(ctx, workflowID, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}

	if lead.Status == target {
		return lead, nil
	}

	lead.Status = target
	lead.UpdatedAt = time.Now().UTC()

	if err := m.leads.Save(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}

	m.logger.InfoContext(ctx, "Membership status changed",
		"workflow_id", workflowID, "lead_id", leadID, "status", target)

	return lead, nil
}

// RecordLastNode stores the last node reached in the membership's context
// data, for resumable automations spanning multiple executions.
func (m *Memberships) RecordLastNode(ctx context.Context, workflowID, leadID, nodeID string) error {
	lead, err := m.leads.GetByWorkflowAndLead(ctx, workflowID, leadID)
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}

	if lead.ContextData == nil {
		lead.ContextData = make(map[string]any)
	}

	lead.ContextData["last_node_id"] = nodeID
	lead.UpdatedAt = time.Now().UTC()

	return m.leads.Save(ctx, lead)
}
