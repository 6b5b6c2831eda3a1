package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/workflow"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow handles workflow authoring and lifecycle operations. Activation
// snapshots the definition into an immutable version so running executions
// stay isolated from later edits.
type Workflow struct {
	persistence persistence.Persistence
	validator   *workflow.Validator
	store       *workflow.DefinitionStore
	validate    *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, v *workflow.Validator) *Workflow {
	return &Workflow{
		persistence: p,
		validator:   v,
		store:       workflow.NewDefinitionStore(p),
		validate:    validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create adds a new workflow in draft status.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	now := time.Now().UTC()
	wf.ID = uuid.New().String()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	wf.Status = models.WorkflowStatusDraft
	wf.Version = 0

	if wf.Type == "" {
		wf.Type = models.WorkflowTypeAutomation
	}

	if err := w.validate.Struct(wf); err != nil {
		return nil, NewValidationError("Create", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf == nil {
		return nil, ErrWorkflowNotFound
	}

	return wf, nil
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Owner           string
	Status          *models.WorkflowStatus
	IncludeArchived bool
}

// ListWorkflows retrieves workflows with optional owner and status filters.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) ([]*models.Workflow, error) {
	if req.Status != nil && !validWorkflowStatus(*req.Status) {
		return nil, NewValidationError("ListWorkflows", "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
	}

	workflows, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Owner:           req.Owner,
		Status:          req.Status,
		IncludeArchived: req.IncludeArchived,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// UpdateDefinition replaces the live graph of an editable workflow. The graph
// is structurally validated before the write, so ambiguous edges and dangling
// successors never reach storage.
func (w *Workflow) UpdateDefinition(ctx context.Context, id string, definition *models.WorkflowDefinition) (*models.Workflow, error) {
	if definition == nil {
		return nil, ErrDefinitionRequired
	}

	wf, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !wf.IsEditable() {
		return nil, fmt.Errorf("%w: status %s", ErrWorkflowNotEditable, wf.Status)
	}

	wf.Definition = definition
	if err := w.validator.ValidateDefinition(wf); err != nil {
		return nil, err
	}

	wf.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

// Activate validates the definition, snapshots it as a new immutable version
// and transitions the workflow to active. New executions pin the snapshot.
func (w *Workflow) Activate(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !wf.CanTransitionTo(models.WorkflowStatusActive) {
		return nil, fmt.Errorf("%w: %s -> active", ErrInvalidTransition, wf.Status)
	}

	if err := w.validator.ValidateDefinition(wf); err != nil {
		return nil, err
	}

	version, err := w.store.Snapshot(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot definition: %w", err)
	}

	wf.Status = models.WorkflowStatusActive
	wf.Version = version.VersionNumber
	wf.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

// Pause stops new executions from being created. In-flight executions keep
// running against their pinned versions.
func (w *Workflow) Pause(ctx context.Context, id string) (*models.Workflow, error) {
	return w.transition(ctx, id, models.WorkflowStatusPaused)
}

// EnterMaintenance blocks both execution and editing temporarily.
func (w *Workflow) EnterMaintenance(ctx context.Context, id string) (*models.Workflow, error) {
	return w.transition(ctx, id, models.WorkflowStatusMaintenance)
}

// Archive soft-deletes the workflow. Archived is terminal.
func (w *Workflow) Archive(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := w.transition(ctx, id, models.WorkflowStatusArchived)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	wf.ArchivedAt = &now

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

func (w *Workflow) transition(ctx context.Context, id string, target models.WorkflowStatus) (*models.Workflow, error) {
	wf, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !wf.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, wf.Status, target)
	}

	wf.Status = target
	wf.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

func validWorkflowStatus(status models.WorkflowStatus) bool {
	switch status {
	case models.WorkflowStatusDraft,
		models.WorkflowStatusActive,
		models.WorkflowStatusPaused,
		models.WorkflowStatusArchived,
		models.WorkflowStatusMaintenance:
		return true
	default:
		return false
	}
}
