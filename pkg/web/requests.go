package web

import "github.com/leadflow/leadflow/pkg/models"

// CreateWorkflowRequest creates a new draft workflow.
type CreateWorkflowRequest struct {
	Name      string                    `json:"name"     validate:"required,min=3"`
	Type      models.WorkflowType       `json:"type"     validate:"omitempty,oneof=automation drip broadcast blueprint"`
	Priority  int                       `json:"priority" validate:"min=0,max=10"`
	Owner     string                    `json:"owner"    validate:"required"`
	Variables map[string]any            `json:"variables,omitempty"`
	Triggers  []*models.WorkflowTrigger `json:"triggers,omitempty"`
}

// UpdateDefinitionRequest replaces the live graph of an editable workflow.
type UpdateDefinitionRequest struct {
	Definition *models.WorkflowDefinition `json:"definition" validate:"required"`
}

// TriggerExecutionRequest starts an execution for a lead.
type TriggerExecutionRequest struct {
	LeadID  string         `json:"lead_id" validate:"required"`
	UserID  string         `json:"user_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EnrollLeadRequest adds a lead to a workflow.
type EnrollLeadRequest struct {
	LeadID string `json:"lead_id" validate:"required"`
}
