package file

import (
	"context"
	"sync"

	"github.com/leadflow/leadflow/pkg/models"
)

const logsDir = "logs"

// LogRepository stores each execution's audit trail as one JSON document
// holding the ordered entry list. Append assigns the next Sequence under the
// repository lock, giving a total order per execution.
type LogRepository struct {
	root string
	mu   sync.Mutex
}

func NewLogRepository(root string) *LogRepository {
	return &LogRepository{root: root}
}

func (lr *LogRepository) Append(_ context.Context, entry *models.WorkflowLog) error {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	var trail []*models.WorkflowLog
	if _, err := readDocument(lr.root, logsDir, entry.ExecutionID, &trail); err != nil {
		return err
	}

	entry.Sequence = int64(len(trail) + 1)
	trail = append(trail, entry)

	return writeDocument(lr.root, logsDir, entry.ExecutionID, trail)
}

func (lr *LogRepository) ListByExecution(_ context.Context, executionID string) ([]*models.WorkflowLog, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	var trail []*models.WorkflowLog
	if _, err := readDocument(lr.root, logsDir, executionID, &trail); err != nil {
		return nil, err
	}

	if trail == nil {
		trail = []*models.WorkflowLog{}
	}

	return trail, nil
}
