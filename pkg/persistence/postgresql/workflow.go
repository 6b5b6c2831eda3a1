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

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db *sql.DB
}

func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	definitionJSON, err := json.Marshal(workflow.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	triggersJSON, err := json.Marshal(workflow.Triggers)
	if err != nil {
		return fmt.Errorf("failed to marshal triggers: %w", err)
	}

	variablesJSON, err := json.Marshal(workflow.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	query := `
		INSERT INTO workflows (
			id, name, status, type, priority, definition, version,
			triggers, variables, owner, created_at, updated_at, archived_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			type = EXCLUDED.type,
			priority = EXCLUDED.priority,
			definition = EXCLUDED.definition,
			version = EXCLUDED.version,
			triggers = EXCLUDED.triggers,
			variables = EXCLUDED.variables,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			archived_at = EXCLUDED.archived_at
	`

	_, err = wr.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Status,
		workflow.Type,
		workflow.Priority,
		definitionJSON,
		workflow.Version,
		triggersJSON,
		variablesJSON,
		workflow.Owner,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, name, status, type, priority, definition, version,
		       triggers, variables, owner, created_at, updated_at, archived_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(wr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}

	return workflow, nil
}

func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	query := `
		SELECT id, name, status, type, priority, definition, version,
		       triggers, variables, owner, created_at, updated_at, archived_at
		FROM workflows
		WHERE ($1 = '' OR owner = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 OR status <> 'archived' OR $2 = 'archived')
		ORDER BY created_at DESC
	`

	status := ""
	if opts.Status != nil {
		status = string(*opts.Status)
	}

	rows, err := wr.db.QueryContext(ctx, query, opts.Owner, status, opts.IncludeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	return workflows, nil
}

// Delete archives the workflow; executions and versions keep referencing it.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE workflows
		SET status = 'archived', archived_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := wr.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to archive workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check archive result: %w", err)
	}

	if affected == 0 {
		return persistence.NewRepositoryError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow       models.Workflow
		definitionJSON []byte
		triggersJSON   []byte
		variablesJSON  []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Status,
		&workflow.Type,
		&workflow.Priority,
		&definitionJSON,
		&workflow.Version,
		&triggersJSON,
		&variablesJSON,
		&workflow.Owner,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalColumn(definitionJSON, &workflow.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}

	if err := unmarshalColumn(triggersJSON, &workflow.Triggers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal triggers: %w", err)
	}

	if err := unmarshalColumn(variablesJSON, &workflow.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	return &workflow, nil
}

func unmarshalColumn(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, out)
}
