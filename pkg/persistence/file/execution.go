package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository stores execution state as JSON documents.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	return writeDocument(er.root, executionsDir, execution.ID, execution)
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.getByID(id)
}

func (er *ExecutionRepository) getByID(id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	found, err := readDocument(er.root, executionsDir, id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewRepositoryError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return er.list(func(e *models.WorkflowExecution) bool {
		return e.WorkflowID == workflowID
	})
}

func (er *ExecutionRepository) ListByStatus(_ context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	return er.list(func(e *models.WorkflowExecution) bool {
		return e.Status == status
	})
}

func (er *ExecutionRepository) RunningExecutionForLead(_ context.Context, workflowID, leadID string) (*models.WorkflowExecution, error) {
	executions, err := er.list(func(e *models.WorkflowExecution) bool {
		return e.WorkflowID == workflowID && e.LeadID == leadID && !e.IsTerminal()
	})
	if err != nil {
		return nil, err
	}

	if len(executions) == 0 {
		return nil, persistence.NewRepositoryError("RunningExecutionForLead", "execution", leadID, persistence.ErrExecutionNotFound)
	}

	return executions[0], nil
}

func (er *ExecutionRepository) ListDueForResume(_ context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error) {
	executions, err := er.list(func(e *models.WorkflowExecution) bool {
		return !e.IsTerminal() && e.ResumeAt != nil && !e.ResumeAt.After(now)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].ResumeAt.Before(*executions[j].ResumeAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

func (er *ExecutionRepository) list(keep func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	ids, err := listDocumentIDs(er.root, executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := er.getByID(id)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		if keep(execution) {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}
