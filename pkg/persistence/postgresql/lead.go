package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// LeadRepository handles workflow-lead membership operations with optimistic
// revision checks.
type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (lr *LeadRepository) Save(ctx context.Context, lead *models.WorkflowLead) error {
	contextJSON, err := json.Marshal(lead.ContextData)
	if err != nil {
		return fmt.Errorf("failed to marshal context data: %w", err)
	}

	if lead.Revision == 0 {
		return lr.insert(ctx, lead, contextJSON)
	}

	query := `
		UPDATE workflow_leads
		SET status = $1, context_data = $2, revision = revision + 1, updated_at = $3
		WHERE id = $4 AND revision = $5
	`

	result, err := lr.db.ExecContext(ctx, query,
		lead.Status, contextJSON, lead.UpdatedAt, lead.ID, lead.Revision)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.NewRepositoryError("Save", "lead", lead.ID, persistence.ErrLeadRevisionConflict)
	}

	lead.Revision++

	return nil
}

func (lr *LeadRepository) insert(ctx context.Context, lead *models.WorkflowLead, contextJSON []byte) error {
	query := `
		INSERT INTO workflow_leads (
			id, workflow_id, lead_id, status, context_data, revision, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
	`

	_, err := lr.db.ExecContext(ctx, query,
		lead.ID, lead.WorkflowID, lead.LeadID, lead.Status, contextJSON,
		lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.NewRepositoryError("Save", "lead", lead.ID, persistence.ErrLeadAlreadyExists)
		}

		return fmt.Errorf("failed to insert lead: %w", err)
	}

	lead.Revision = 1

	return nil
}

func (lr *LeadRepository) GetByID(ctx context.Context, id string) (*models.WorkflowLead, error) {
	query := leadSelect + ` WHERE id = $1`

	lead, err := scanLead(lr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "lead", id, persistence.ErrLeadNotFound)
		}

		return nil, fmt.Errorf("failed to get lead %s: %w", id, err)
	}

	return lead, nil
}

func (lr *LeadRepository) GetByWorkflowAndLead(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	query := leadSelect + ` WHERE workflow_id = $1 AND lead_id = $2`

	lead, err := scanLead(lr.db.QueryRowContext(ctx, query, workflowID, leadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByWorkflowAndLead", "lead", leadID, persistence.ErrLeadNotFound)
		}

		return nil, fmt.Errorf("failed to get lead %s: %w", leadID, err)
	}

	return lead, nil
}

func (lr *LeadRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowLead, error) {
	query := leadSelect + ` WHERE workflow_id = $1 ORDER BY created_at`

	rows, err := lr.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*models.WorkflowLead, 0)

	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}

	return leads, nil
}

const leadSelect = `
	SELECT id, workflow_id, lead_id, status, context_data, revision, created_at, updated_at
	FROM workflow_leads
`

func scanLead(row rowScanner) (*models.WorkflowLead, error) {
	var (
		lead        models.WorkflowLead
		contextJSON []byte
	)

	err := row.Scan(
		&lead.ID,
		&lead.WorkflowID,
		&lead.LeadID,
		&lead.Status,
		&contextJSON,
		&lead.Revision,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalColumn(contextJSON, &lead.ContextData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context data: %w", err)
	}

	return &lead, nil
}
