package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository stores workflows as JSON documents.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return writeDocument(wr.root, workflowsDir, workflow.ID, workflow)
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	var workflow models.Workflow

	found, err := readDocument(wr.root, workflowsDir, id, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewRepositoryError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	wr.mu.RLock()
	ids, err := listDocumentIDs(wr.root, workflowsDir)
	wr.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		if opts.Owner != "" && workflow.Owner != opts.Owner {
			continue
		}

		if opts.Status != nil && workflow.Status != *opts.Status {
			continue
		}

		if !opts.IncludeArchived && workflow.Status == models.WorkflowStatusArchived && opts.Status == nil {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// Delete archives the workflow rather than removing the document, because
// executions and versions keep referencing it.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	workflow, err := wr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusArchived
	workflow.ArchivedAt = &now

	return wr.Save(ctx, workflow)
}
