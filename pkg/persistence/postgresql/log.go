package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/leadflow/leadflow/pkg/models"
)

// LogRepository handles the append-only audit trail. The walker holds the
// execution lease while appending, so there is a single writer per execution
// and the MAX(sequence)+1 subquery is safe.
type LogRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (lr *LogRepository) Append(ctx context.Context, entry *models.WorkflowLog) error {
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal log payload: %w", err)
	}

	query := `
		INSERT INTO workflow_logs (
			id, execution_id, workflow_id, node_id, event_type, message,
			payload, status, sequence, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			(SELECT COALESCE(MAX(sequence), 0) + 1 FROM workflow_logs WHERE execution_id = $2),
			$9)
		RETURNING sequence
	`

	err = lr.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.WorkflowID,
		entry.NodeID,
		entry.EventType,
		entry.Message,
		payloadJSON,
		entry.Status,
		entry.CreatedAt,
	).Scan(&entry.Sequence)
	if err != nil {
		return fmt.Errorf("failed to append workflow log: %w", err)
	}

	return nil
}

func (lr *LogRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.WorkflowLog, error) {
	query := `
		SELECT id, execution_id, workflow_id, node_id, event_type, message,
		       payload, status, sequence, created_at
		FROM workflow_logs
		WHERE execution_id = $1
		ORDER BY sequence
	`

	rows, err := lr.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow logs: %w", err)
	}
	defer rows.Close()

	trail := make([]*models.WorkflowLog, 0)

	for rows.Next() {
		var (
			entry       models.WorkflowLog
			payloadJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.WorkflowID,
			&entry.NodeID,
			&entry.EventType,
			&entry.Message,
			&payloadJSON,
			&entry.Status,
			&entry.Sequence,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow log: %w", err)
		}

		if err := unmarshalColumn(payloadJSON, &entry.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log payload: %w", err)
		}

		trail = append(trail, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow logs: %w", err)
	}

	return trail, nil
}
