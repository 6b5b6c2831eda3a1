// Package file provides file-based persistence for workflows, executions,
// logs, leads and version snapshots. One JSON document per entity, suited to
// development and single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	logRepo       *LogRepository
	leadRepo      *LeadRepository
	versionRepo   *VersionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
		logRepo:       NewLogRepository(cleanRoot),
		leadRepo:      NewLeadRepository(cleanRoot),
		versionRepo:   NewVersionRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists and is writable.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(fp.root, 0750); err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) LogRepository() persistence.LogRepository {
	return fp.logRepo
}

func (fp *Persistence) LeadRepository() persistence.LeadRepository {
	return fp.leadRepo
}

func (fp *Persistence) VersionRepository() persistence.VersionRepository {
	return fp.versionRepo
}

// NodeRepository resolves nodes by reading the live workflow document.
func (fp *Persistence) NodeRepository() persistence.NodeRepository {
	return &nodeRepository{workflows: fp.workflowRepo}
}

type nodeRepository struct {
	workflows *WorkflowRepository
}

func (nr *nodeRepository) GetNode(ctx context.Context, workflowID, nodeID string) (*models.WorkflowNode, error) {
	workflow, err := nr.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Definition != nil {
		if node, ok := workflow.Definition.Node(nodeID); ok {
			return node, nil
		}
	}

	return nil, persistence.NewRepositoryError("GetNode", "node", nodeID, persistence.ErrNodeNotFound)
}

func (nr *nodeRepository) GetNodesByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowNode, error) {
	workflow, err := nr.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Definition == nil {
		return []*models.WorkflowNode{}, nil
	}

	return workflow.Definition.Nodes, nil
}

// readDocument loads one JSON document from dir/id.json into out.
func readDocument(root, dir, id string, out any) (bool, error) {
	filePath := filepath.Clean(path.Join(root, dir, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s %s: %w", dir, id, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", dir, id, err)
	}

	return true, nil
}

// writeDocument stores one JSON document at dir/id.json, creating dir as
// needed.
func writeDocument(root, dir, id string, doc any) error {
	if err := os.MkdirAll(path.Join(root, dir), 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", dir, id, err)
	}

	return os.WriteFile(path.Join(root, dir, id+".json"), data, 0600)
}

// listDocumentIDs returns the IDs of all documents in dir.
func listDocumentIDs(root, dir string) ([]string, error) {
	entries, err := fs.Glob(os.DirFS(path.Join(root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, strings.TrimSuffix(entry, ".json"))
	}

	return ids, nil
}
