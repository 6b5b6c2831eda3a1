// Package postgresql provides PostgreSQL persistence for workflows,
// executions, logs, leads and version snapshots.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	logRepo       *LogRepository
	leadRepo      *LeadRepository
	versionRepo   *VersionRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database),
		executionRepo: NewExecutionRepository(database),
		logRepo:       NewLogRepository(database),
		leadRepo:      NewLeadRepository(database),
		versionRepo:   NewVersionRepository(database),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) LogRepository() persistence.LogRepository {
	return p.logRepo
}

func (p *Persistence) LeadRepository() persistence.LeadRepository {
	return p.leadRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

// NodeRepository resolves nodes from the live workflow definition column.
func (p *Persistence) NodeRepository() persistence.NodeRepository {
	return &nodeRepository{workflows: p.workflowRepo}
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
