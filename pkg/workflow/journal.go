package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// Journal is the execution log writer. Entries are appended before the
// corresponding state mutation is committed (log-before-effect), so the log
// is always a conservative superset of what actually happened. An append
// failure aborts the in-progress step.
type Journal struct {
	logs persistence.LogRepository
}

func NewJournal(logs persistence.LogRepository) *Journal {
	return &Journal{logs: logs}
}

// Append writes one audit entry for the execution. Never fails silently.
func (j *Journal) Append(ctx context.Context, execution *models.WorkflowExecution, nodeID string, eventType models.LogEventType, message string) error {
	entry := &models.WorkflowLog{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		NodeID:      nodeID,
		EventType:   eventType,
		Message:     message,
		Payload:     execution.PayloadSnapshot(),
		Status:      execution.Status,
		CreatedAt:   time.Now().UTC(),
	}

	if err := j.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append workflow log for execution %s: %w", execution.ID, err)
	}

	return nil
}

// Trail returns the ordered audit trail of an execution.
func (j *Journal) Trail(ctx context.Context, executionID string) ([]*models.WorkflowLog, error) {
	return j.logs.ListByExecution(ctx, executionID)
}
