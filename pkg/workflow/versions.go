package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// DefinitionStore is the read-only view executions resolve nodes through.
// Every execution pins one immutable WorkflowVersion at creation time, so
// concurrent edits to a draft or paused workflow never corrupt a running
// execution.
type DefinitionStore struct {
	persistence persistence.Persistence
}

func NewDefinitionStore(p persistence.Persistence) *DefinitionStore {
	return &DefinitionStore{persistence: p}
}

// Snapshot freezes the workflow's current definition as the next version
// number. Called when a workflow is activated.
func (s *DefinitionStore) Snapshot(ctx context.Context, workflow *models.Workflow) (*models.WorkflowVersion, error) {
	if workflow.Definition == nil || len(workflow.Definition.Nodes) == 0 {
		return nil, &ValidationError{WorkflowID: workflow.ID, Err: ErrDefinitionEmpty}
	}

	version := &models.WorkflowVersion{
		ID:            uuid.New().String(),
		WorkflowID:    workflow.ID,
		VersionNumber: workflow.Version + 1,
		Definition:    workflow.Definition.Clone(),
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.persistence.VersionRepository().Save(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version snapshot: %w", err)
	}

	return version, nil
}

// Pinned loads the immutable snapshot an execution runs against.
func (s *DefinitionStore) Pinned(ctx context.Context, versionID string) (*models.WorkflowVersion, error) {
	version, err := s.persistence.VersionRepository().GetByID(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pinned version %s: %w", versionID, err)
	}

	return version, nil
}

// Latest returns the most recent snapshot for a workflow, used to pin new
// executions.
func (s *DefinitionStore) Latest(ctx context.Context, workflowID string) (*models.WorkflowVersion, error) {
	version, err := s.persistence.VersionRepository().LatestByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version for workflow %s: %w", workflowID, err)
	}

	return version, nil
}

// GetNode resolves a node in the live workflow graph. Authoring surfaces use
// this; executions resolve through Pinned instead.
func (s *DefinitionStore) GetNode(ctx context.Context, workflowID, nodeID string) (*models.WorkflowNode, error) {
	return s.persistence.NodeRepository().GetNode(ctx, workflowID, nodeID)
}

// GetEntryNode returns the live graph's entry node.
func (s *DefinitionStore) GetEntryNode(ctx context.Context, workflowID string) (*models.WorkflowNode, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Definition == nil {
		return nil, persistence.NewRepositoryError("GetEntryNode", "workflow", workflowID, persistence.ErrNodeNotFound)
	}

	entry, ok := workflow.Definition.EntryNode()
	if !ok {
		return nil, persistence.NewRepositoryError("GetEntryNode", "workflow", workflowID, persistence.ErrNodeNotFound)
	}

	return entry, nil
}
