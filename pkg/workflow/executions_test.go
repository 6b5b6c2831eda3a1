package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/models"
)

func TestExecutions_Create_PinsLatestVersion(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)

	execution, err := f.executions.Create(ctx, CreateRequest{
		WorkflowID: workflow.ID,
		LeadID:     "lead-1",
		Payload:    map[string]any{"origin": "signup"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.NotEmpty(t, execution.VersionID)
	require.NotNil(t, execution.CurrentNodeID)
	assert.Equal(t, "a", *execution.CurrentNodeID)
	assert.Equal(t, "signup", execution.Payload["origin"])

	version, err := f.store.Pinned(ctx, execution.VersionID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, version.WorkflowID)

	// Creation also enrolled the lead.
	membership, err := f.memberships.GetOrCreate(ctx, workflow.ID, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusActive, membership.Status)
}

func TestExecutions_Create_RejectsNonExecutableWorkflow(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)

	workflow.Status = models.WorkflowStatusPaused
	require.NoError(t, f.persistence.WorkflowRepository().Save(ctx, workflow))

	_, err := f.executions.Create(ctx, CreateRequest{WorkflowID: workflow.ID, LeadID: "lead-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorkflowNotExecutable))
}

func TestExecutions_Create_RejectsIneligibleLead(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)

	_, err := f.memberships.GetOrCreate(ctx, workflow.ID, "lead-1")
	require.NoError(t, err)
	_, err = f.memberships.Remove(ctx, workflow.ID, "lead-1")
	require.NoError(t, err)

	_, err = f.executions.Create(ctx, CreateRequest{WorkflowID: workflow.ID, LeadID: "lead-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeadNotEligible))
}

func TestExecutions_Create_OneRunningExecutionPerLead(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)

	first, err := f.executions.Create(ctx, CreateRequest{WorkflowID: workflow.ID, LeadID: "lead-1"})
	require.NoError(t, err)

	_, err = f.executions.Create(ctx, CreateRequest{WorkflowID: workflow.ID, LeadID: "lead-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeadExecutionInFlight))

	// A different lead is unaffected.
	_, err = f.executions.Create(ctx, CreateRequest{WorkflowID: workflow.ID, LeadID: "lead-2"})
	require.NoError(t, err)

	// Once the first run is terminal the lead may run again.
	result, err := f.walker.Run(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, result.Outcome)

	_, err = f.executions.Create(ctx, CreateRequest{WorkflowID: workflow.ID, LeadID: "lead-1"})
	require.NoError(t, err)
}

func TestExecutions_RequestCancel_IsIdempotent(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	require.NoError(t, f.executions.RequestCancel(ctx, execution.ID))
	require.NoError(t, f.executions.RequestCancel(ctx, execution.ID))

	stored, err := f.executions.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.True(t, stored.CancelRequested)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status)
}

func TestExecutions_RequestCancel_TerminalIsNoOp(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Run(ctx, execution.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, result.Outcome)

	require.NoError(t, f.executions.RequestCancel(ctx, execution.ID))

	stored, err := f.executions.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.False(t, stored.CancelRequested)
}

func TestExecutions_TerminalTransitionsAreIdempotent(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	require.NoError(t, f.executions.Complete(ctx, execution))
	completedAt := execution.CompletedAt

	// Completing or failing an already completed execution changes nothing.
	require.NoError(t, f.executions.Complete(ctx, execution))
	require.NoError(t, f.executions.Fail(ctx, execution, "too late"))

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, completedAt, execution.CompletedAt)
	assert.Empty(t, execution.ErrorMessage)

	err := f.executions.Advance(ctx, execution, "a", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionTerminal))
}
