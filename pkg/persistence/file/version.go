package file

import (
	"context"
	"sync"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

const versionsDir = "versions"

// VersionRepository stores immutable definition snapshots.
type VersionRepository struct {
	root string
	mu   sync.RWMutex
}

func NewVersionRepository(root string) *VersionRepository {
	return &VersionRepository{root: root}
}

func (vr *VersionRepository) Save(_ context.Context, version *models.WorkflowVersion) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	return writeDocument(vr.root, versionsDir, version.ID, version)
}

func (vr *VersionRepository) GetByID(_ context.Context, id string) (*models.WorkflowVersion, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()

	return vr.getByID(id)
}

func (vr *VersionRepository) getByID(id string) (*models.WorkflowVersion, error) {
	var version models.WorkflowVersion

	found, err := readDocument(vr.root, versionsDir, id, &version)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewRepositoryError("GetByID", "version", id, persistence.ErrVersionNotFound)
	}

	return &version, nil
}

func (vr *VersionRepository) GetByWorkflowAndNumber(_ context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()

	versions, err := vr.listByWorkflow(workflowID)
	if err != nil {
		return nil, err
	}

	for _, version := range versions {
		if version.VersionNumber == number {
			return version, nil
		}
	}

	return nil, persistence.NewRepositoryError("GetByWorkflowAndNumber", "version", workflowID, persistence.ErrVersionNotFound)
}

func (vr *VersionRepository) LatestByWorkflow(_ context.Context, workflowID string) (*models.WorkflowVersion, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()

	versions, err := vr.listByWorkflow(workflowID)
	if err != nil {
		return nil, err
	}

	var latest *models.WorkflowVersion

	for _, version := range versions {
		if latest == nil || version.VersionNumber > latest.VersionNumber {
			latest = version
		}
	}

	if latest == nil {
		return nil, persistence.NewRepositoryError("LatestByWorkflow", "version", workflowID, persistence.ErrVersionNotFound)
	}

	return latest, nil
}

func (vr *VersionRepository) listByWorkflow(workflowID string) ([]*models.WorkflowVersion, error) {
	ids, err := listDocumentIDs(vr.root, versionsDir)
	if err != nil {
		return nil, err
	}

	versions := make([]*models.WorkflowVersion, 0, len(ids))

	for _, id := range ids {
		version, err := vr.getByID(id)
		if err != nil {
			if persistence.IsVersionNotFound(err) {
				continue
			}

			return nil, err
		}

		if version.WorkflowID == workflowID {
			versions = append(versions, version)
		}
	}

	return versions, nil
}
