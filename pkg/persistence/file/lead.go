package file

import (
	"context"
	"sync"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

const leadsDir = "leads"

// LeadRepository stores workflow-lead memberships as JSON documents keyed by
// membership ID. Save enforces the optimistic Revision check under the
// repository lock.
type LeadRepository struct {
	root string
	mu   sync.Mutex
}

func NewLeadRepository(root string) *LeadRepository {
	return &LeadRepository{root: root}
}

func (lr *LeadRepository) Save(_ context.Context, lead *models.WorkflowLead) error {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	var stored models.WorkflowLead

	found, err := readDocument(lr.root, leadsDir, lead.ID, &stored)
	if err != nil {
		return err
	}

	if found && stored.Revision != lead.Revision {
		return persistence.NewRepositoryError("Save", "lead", lead.ID, persistence.ErrLeadRevisionConflict)
	}

	if !found {
		// First write for this ID; refuse a second membership for the pair.
		if existing, err := lr.findByPair(lead.WorkflowID, lead.LeadID); err == nil && existing.ID != lead.ID {
			return persistence.NewRepositoryError("Save", "lead", lead.ID, persistence.ErrLeadAlreadyExists)
		}
	}

	lead.Revision++

	return writeDocument(lr.root, leadsDir, lead.ID, lead)
}

func (lr *LeadRepository) GetByID(_ context.Context, id string) (*models.WorkflowLead, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	var lead models.WorkflowLead

	found, err := readDocument(lr.root, leadsDir, id, &lead)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewRepositoryError("GetByID", "lead", id, persistence.ErrLeadNotFound)
	}

	return &lead, nil
}

func (lr *LeadRepository) GetByWorkflowAndLead(_ context.Context, workflowID, leadID string) (*models.WorkflowLead, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	return lr.findByPair(workflowID, leadID)
}

func (lr *LeadRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowLead, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	ids, err := listDocumentIDs(lr.root, leadsDir)
	if err != nil {
		return nil, err
	}

	leads := make([]*models.WorkflowLead, 0, len(ids))

	for _, id := range ids {
		var lead models.WorkflowLead

		found, err := readDocument(lr.root, leadsDir, id, &lead)
		if err != nil {
			return nil, err
		}

		if found && lead.WorkflowID == workflowID {
			copied := lead
			leads = append(leads, &copied)
		}
	}

	return leads, nil
}

func (lr *LeadRepository) findByPair(workflowID, leadID string) (*models.WorkflowLead, error) {
	ids, err := listDocumentIDs(lr.root, leadsDir)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		var lead models.WorkflowLead

		found, err := readDocument(lr.root, leadsDir, id, &lead)
		if err != nil {
			return nil, err
		}

		if found && lead.WorkflowID == workflowID && lead.LeadID == leadID {
			return &lead, nil
		}
	}

	return nil, persistence.NewRepositoryError("GetByWorkflowAndLead", "lead", leadID, persistence.ErrLeadNotFound)
}
