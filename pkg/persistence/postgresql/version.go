package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// VersionRepository stores immutable definition snapshots.
type VersionRepository struct {
	db *sql.DB
}

func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (vr *VersionRepository) Save(ctx context.Context, version *models.WorkflowVersion) error {
	definitionJSON, err := json.Marshal(version.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO workflow_versions (id, workflow_id, version_number, definition, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = vr.db.ExecContext(ctx, query,
		version.ID, version.WorkflowID, version.VersionNumber, definitionJSON, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save version: %w", err)
	}

	return nil
}

func (vr *VersionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowVersion, error) {
	query := versionSelect + ` WHERE id = $1`

	version, err := scanVersion(vr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "version", id, persistence.ErrVersionNotFound)
		}

		return nil, fmt.Errorf("failed to get version %s: %w", id, err)
	}

	return version, nil
}

func (vr *VersionRepository) GetByWorkflowAndNumber(ctx context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	query := versionSelect + ` WHERE workflow_id = $1 AND version_number = $2`

	version, err := scanVersion(vr.db.QueryRowContext(ctx, query, workflowID, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByWorkflowAndNumber", "version", workflowID, persistence.ErrVersionNotFound)
		}

		return nil, fmt.Errorf("failed to get version %d of workflow %s: %w", number, workflowID, err)
	}

	return version, nil
}

func (vr *VersionRepository) LatestByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowVersion, error) {
	query := versionSelect + ` WHERE workflow_id = $1 ORDER BY version_number DESC LIMIT 1`

	version, err := scanVersion(vr.db.QueryRowContext(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("LatestByWorkflow", "version", workflowID, persistence.ErrVersionNotFound)
		}

		return nil, fmt.Errorf("failed to get latest version of workflow %s: %w", workflowID, err)
	}

	return version, nil
}

const versionSelect = `
	SELECT id, workflow_id, version_number, definition, created_at
	FROM workflow_versions
`

func scanVersion(row rowScanner) (*models.WorkflowVersion, error) {
	var (
		version        models.WorkflowVersion
		definitionJSON []byte
	)

	err := row.Scan(
		&version.ID,
		&version.WorkflowID,
		&version.VersionNumber,
		&definitionJSON,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalColumn(definitionJSON, &version.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}

	return &version, nil
}
