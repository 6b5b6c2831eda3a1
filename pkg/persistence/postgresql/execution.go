package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db *sql.DB
}

func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

const executionColumns = `
	id, workflow_id, version_id, lead_id, status, payload, current_node_id,
	error_message, user_id, step_count, cancel_requested, resume_at,
	created_at, started_at, completed_at, failed_at
`

func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	payloadJSON, err := json.Marshal(execution.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			current_node_id = EXCLUDED.current_node_id,
			error_message = EXCLUDED.error_message,
			step_count = EXCLUDED.step_count,
			cancel_requested = EXCLUDED.cancel_requested,
			resume_at = EXCLUDED.resume_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at
	`

	_, err = er.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.VersionID,
		execution.LeadID,
		execution.Status,
		payloadJSON,
		execution.CurrentNodeID,
		execution.ErrorMessage,
		execution.UserID,
		execution.StepCount,
		execution.CancelRequested,
		execution.ResumeAt,
		execution.CreatedAt,
		execution.StartedAt,
		execution.CompletedAt,
		execution.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions WHERE workflow_id = $1 ORDER BY created_at DESC`

	return er.query(ctx, query, workflowID)
}

func (er *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions WHERE status = $1 ORDER BY created_at`

	return er.query(ctx, query, status)
}

func (er *ExecutionRepository) RunningExecutionForLead(ctx context.Context, workflowID, leadID string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1 AND lead_id = $2 AND status IN ('pending', 'running')
		ORDER BY created_at
		LIMIT 1`

	execution, err := scanExecution(er.db.QueryRowContext(ctx, query, workflowID, leadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("RunningExecutionForLead", "execution", leadID, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to find running execution: %w", err)
	}

	return execution, nil
}

func (er *ExecutionRepository) ListDueForResume(ctx context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE status IN ('pending', 'running') AND resume_at IS NOT NULL AND resume_at <= $1
		ORDER BY resume_at
		LIMIT $2`

	return er.query(ctx, query, now, limit)
}

func (er *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := er.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution   models.WorkflowExecution
		payloadJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.VersionID,
		&execution.LeadID,
		&execution.Status,
		&payloadJSON,
		&execution.CurrentNodeID,
		&execution.ErrorMessage,
		&execution.UserID,
		&execution.StepCount,
		&execution.CancelRequested,
		&execution.ResumeAt,
		&execution.CreatedAt,
		&execution.StartedAt,
		&execution.CompletedAt,
		&execution.FailedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalColumn(payloadJSON, &execution.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return &execution, nil
}
