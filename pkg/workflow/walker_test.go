package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/lock"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence/file"
	"github.com/leadflow/leadflow/pkg/registry"
)

type walkerFixture struct {
	persistence *file.Persistence
	registry    *registry.Registry
	locker      *lock.MemoryLocker
	memberships *Memberships
	store       *DefinitionStore
	journal     *Journal
	executions  *Executions
	walker      *Walker
}

func newWalkerFixture(t *testing.T) *walkerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	persistence := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()

	locker := lock.NewMemoryLocker()
	memberships := NewMemberships(persistence.LeadRepository(), logger)
	store := NewDefinitionStore(persistence)
	journal := NewJournal(persistence.LogRepository())
	executions := NewExecutions(persistence, memberships, store, locker, logger)

	return &walkerFixture{
		persistence: persistence,
		registry:    reg,
		locker:      locker,
		memberships: memberships,
		store:       store,
		journal:     journal,
		executions:  executions,
		walker:      NewWalker(executions, memberships, store, journal, reg, locker, logger),
	}
}

// createActiveWorkflow saves an active workflow and snapshots its definition
// so executions can pin it.
func (f *walkerFixture) createActiveWorkflow(t *testing.T, definition *models.WorkflowDefinition) *models.Workflow {
	t.Helper()

	ctx := context.Background()
	workflow := &models.Workflow{
		ID:         uuid.New().String(),
		Name:       "Test Workflow",
		Status:     models.WorkflowStatusActive,
		Type:       models.WorkflowTypeAutomation,
		Definition: definition,
	}

	require.NoError(t, f.persistence.WorkflowRepository().Save(ctx, workflow))

	version, err := f.store.Snapshot(ctx, workflow)
	require.NoError(t, err)

	workflow.Version = version.VersionNumber
	require.NoError(t, f.persistence.WorkflowRepository().Save(ctx, workflow))

	return workflow
}

func (f *walkerFixture) createExecution(t *testing.T, workflowID, leadID string) *models.WorkflowExecution {
	t.Helper()

	execution, err := f.executions.Create(context.Background(), CreateRequest{
		WorkflowID: workflowID,
		LeadID:     leadID,
	})
	require.NoError(t, err)

	return execution
}

func (f *walkerFixture) trail(t *testing.T, executionID string) []*models.WorkflowLog {
	t.Helper()

	entries, err := f.journal.Trail(context.Background(), executionID)
	require.NoError(t, err)

	return entries
}

func countLogEvents(entries []*models.WorkflowLog, eventType models.LogEventType) int {
	count := 0

	for _, entry := range entries {
		if entry.EventType == eventType {
			count++
		}
	}

	return count
}

func actionNode(id string, next *string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:   id,
		Name: "Action " + id,
		Type: models.NodeTypeAction,
		Config: map[string]any{
			"merge": map[string]any{"visited_" + id: "true"},
		},
		NextNodeID: next,
	}
}

func strPtr(s string) *string {
	return &s
}

func TestWalker_Run_LinearWorkflowCompletes(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes: []*models.WorkflowNode{
			actionNode("a", strPtr("b")),
			actionNode("b", strPtr("c")),
			actionNode("c", nil),
		},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Run(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Execution.Status)
	assert.Nil(t, result.Execution.CurrentNodeID)
	assert.Equal(t, 3, result.Execution.StepCount)
	assert.Equal(t, "true", result.Execution.Payload["visited_a"])
	assert.Equal(t, "true", result.Execution.Payload["visited_c"])

	entries := f.trail(t, execution.ID)
	assert.Equal(t, 3, countLogEvents(entries, models.LogEventEntered))
	assert.Equal(t, 3, countLogEvents(entries, models.LogEventActionResult))
	assert.Zero(t, countLogEvents(entries, models.LogEventError))

	// Sequence numbers form a gapless total order.
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Sequence)
	}

	stored, err := f.executions.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestWalker_Run_PublishesLifecycleEvents(t *testing.T) {
	f := newWalkerFixture(t)

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Run(context.Background(), execution.ID)
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	started, ok := result.Events[0].(events.ExecutionStarted)
	require.True(t, ok)
	assert.Equal(t, execution.ID, started.ExecutionID)
	assert.Equal(t, execution.VersionID, started.VersionID)

	completed, ok := result.Events[1].(events.ExecutionCompleted)
	require.True(t, ok)
	assert.Equal(t, execution.ID, completed.ExecutionID)
	assert.Equal(t, "lead-1", completed.LeadID)
}

func TestWalker_Visit_HandlerConfigErrorFailsExecution(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	// The broken node slipped past save-time validation; the walker must
	// record the failure instead of looping or panicking.
	definition := &models.WorkflowDefinition{
		EntryNodeID: "broken",
		Nodes: []*models.WorkflowNode{
			{ID: "broken", Name: "Broken", Type: models.NodeTypeAction, Config: map[string]any{}},
		},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, models.ExecutionStatusFailed, result.Execution.Status)
	assert.Contains(t, result.Execution.ErrorMessage, "merge")

	// The failed node stays recorded for debugging.
	require.NotNil(t, result.Execution.CurrentNodeID)
	assert.Equal(t, "broken", *result.Execution.CurrentNodeID)

	entries := f.trail(t, execution.ID)
	assert.Equal(t, 1, countLogEvents(entries, models.LogEventEntered))
	assert.Equal(t, 1, countLogEvents(entries, models.LogEventError))
}

func TestWalker_Run_CyclicGraphHitsLoopLimit(t *testing.T) {
	f := newWalkerFixture(t)

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes: []*models.WorkflowNode{
			actionNode("a", strPtr("b")),
			actionNode("b", strPtr("a")),
		},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Run(context.Background(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, models.ExecutionStatusFailed, result.Execution.Status)
	assert.Contains(t, result.Execution.ErrorMessage, ErrLoopLimitExceeded.Error())
	assert.Equal(t, models.DefaultMaxSteps, result.Execution.StepCount)

	entries := f.trail(t, execution.ID)
	assert.Equal(t, models.DefaultMaxSteps, countLogEvents(entries, models.LogEventEntered))
	assert.Equal(t, 1, countLogEvents(entries, models.LogEventError))
}

func TestWalker_Visit_PausedLeadHaltsWithoutMutation(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes: []*models.WorkflowNode{
			actionNode("a", strPtr("b")),
			actionNode("b", nil),
		},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	first, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdvanced, first.Outcome)

	trailBefore := len(f.trail(t, execution.ID))

	_, err = f.memberships.Pause(ctx, workflow.ID, "lead-1")
	require.NoError(t, err)

	result, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHalted, result.Outcome)
	assert.Empty(t, result.Events)

	// The execution row is untouched and no log entry was written for the
	// skipped step.
	stored, err := f.executions.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
	require.NotNil(t, stored.CurrentNodeID)
	assert.Equal(t, "b", *stored.CurrentNodeID)
	assert.Len(t, f.trail(t, execution.ID), trailBefore)

	// Resuming the lead lets the same execution finish.
	_, err = f.memberships.Resume(ctx, workflow.ID, "lead-1")
	require.NoError(t, err)

	resumed, err := f.walker.Run(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, resumed.Outcome)
}

func TestWalker_Run_ExecutionPinnedToVersion(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	v1 := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes: []*models.WorkflowNode{
			{
				ID:     "a",
				Name:   "Mark v1",
				Type:   models.NodeTypeAction,
				Config: map[string]any{"merge": map[string]any{"source": "v1"}},
			},
		},
	}
	workflow := f.createActiveWorkflow(t, v1)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	// Snapshot a new version after the execution pinned the old one.
	workflow.Definition = &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes: []*models.WorkflowNode{
			{
				ID:     "a",
				Name:   "Mark v2",
				Type:   models.NodeTypeAction,
				Config: map[string]any{"merge": map[string]any{"source": "v2"}},
			},
		},
	}
	_, err := f.store.Snapshot(ctx, workflow)
	require.NoError(t, err)
	require.NoError(t, f.persistence.WorkflowRepository().Save(ctx, workflow))

	result, err := f.walker.Run(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, "v1", result.Execution.Payload["source"])
}

func TestWalker_Run_ConditionRoutesByResult(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "check",
		Nodes: []*models.WorkflowNode{
			{
				ID:          "check",
				Name:        "Check qualified",
				Type:        models.NodeTypeCondition,
				Config:      map[string]any{"condition": "{{.payload.qualified}}"},
				TrueNodeID:  strPtr("yes"),
				FalseNodeID: strPtr("no"),
			},
			actionNode("yes", nil),
			actionNode("no", nil),
		},
	}
	workflow := f.createActiveWorkflow(t, definition)

	execution, err := f.executions.Create(ctx, CreateRequest{
		WorkflowID: workflow.ID,
		LeadID:     "lead-1",
		Payload:    map[string]any{"qualified": true},
	})
	require.NoError(t, err)

	result, err := f.walker.Run(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, "true", result.Execution.Payload["visited_yes"])
	assert.NotContains(t, result.Execution.Payload, "visited_no")

	entries := f.trail(t, execution.ID)
	assert.Equal(t, 1, countLogEvents(entries, models.LogEventConditionResult))
}

func TestWalker_Run_SamePayloadVisitsSameNodes(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "check",
		Nodes: []*models.WorkflowNode{
			{
				ID:          "check",
				Name:        "Check qualified",
				Type:        models.NodeTypeCondition,
				Config:      map[string]any{"condition": "{{.payload.qualified}}"},
				TrueNodeID:  strPtr("yes"),
				FalseNodeID: strPtr("no"),
			},
			actionNode("yes", strPtr("done")),
			actionNode("no", strPtr("done")),
			actionNode("done", nil),
		},
	}
	workflow := f.createActiveWorkflow(t, definition)

	enteredNodes := func(executionID string) []string {
		var nodes []string

		for _, entry := range f.trail(t, executionID) {
			if entry.EventType == models.LogEventEntered {
				nodes = append(nodes, entry.NodeID)
			}
		}

		return nodes
	}

	payload := map[string]any{"qualified": true, "score": 88.0}

	first, err := f.executions.Create(ctx, CreateRequest{
		WorkflowID: workflow.ID,
		LeadID:     "lead-1",
		Payload:    payload,
	})
	require.NoError(t, err)

	second, err := f.executions.Create(ctx, CreateRequest{
		WorkflowID: workflow.ID,
		LeadID:     "lead-2",
		Payload:    payload,
	})
	require.NoError(t, err)

	firstResult, err := f.walker.Run(ctx, first.ID)
	require.NoError(t, err)

	secondResult, err := f.walker.Run(ctx, second.ID)
	require.NoError(t, err)

	// Same graph, same payload: the visited-node sequence is reproducible.
	assert.Equal(t, OutcomeCompleted, firstResult.Outcome)
	assert.Equal(t, OutcomeCompleted, secondResult.Outcome)
	assert.Equal(t, []string{"check", "yes", "done"}, enteredNodes(first.ID))
	assert.Equal(t, enteredNodes(first.ID), enteredNodes(second.ID))
}

func TestWalker_Visit_CancelRequestedTransitionsToCancelled(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	require.NoError(t, f.executions.RequestCancel(ctx, execution.ID))

	result, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, models.ExecutionStatusCancelled, result.Execution.Status)
	assert.Empty(t, f.trail(t, execution.ID))

	require.Len(t, result.Events, 1)
	cancelled, ok := result.Events[0].(events.ExecutionCancelled)
	require.True(t, ok)
	assert.Equal(t, execution.ID, cancelled.ExecutionID)
}

func TestWalker_Visit_DelayDefersExecution(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "wait",
		Nodes: []*models.WorkflowNode{
			{
				ID:         "wait",
				Name:       "Wait",
				Type:       models.NodeTypeDelay,
				Config:     map[string]any{"duration": "1h"},
				NextNodeID: strPtr("after"),
			},
			actionNode("after", nil),
		},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDeferred, result.Outcome)
	require.NotNil(t, result.Execution.ResumeAt)
	require.NotNil(t, result.Execution.CurrentNodeID)
	assert.Equal(t, "after", *result.Execution.CurrentNodeID)

	// A visit before the resume time changes nothing.
	trailBefore := len(f.trail(t, execution.ID))

	early, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, early.Outcome)
	assert.Len(t, f.trail(t, execution.ID), trailBefore)
}

func TestWalker_Run_ShortDelayResumesAndCompletes(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "wait",
		Nodes: []*models.WorkflowNode{
			{
				ID:         "wait",
				Name:       "Wait",
				Type:       models.NodeTypeDelay,
				Config:     map[string]any{"duration": "1ms"},
				NextNodeID: strPtr("after"),
			},
			actionNode("after", nil),
		},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeferred, result.Outcome)

	time.Sleep(5 * time.Millisecond)

	resumed, err := f.walker.Run(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, resumed.Outcome)
	assert.Nil(t, resumed.Execution.ResumeAt)
	assert.Equal(t, "true", resumed.Execution.Payload["visited_after"])
}

func TestWalker_Visit_TrailingDelayCompletesImmediately(t *testing.T) {
	f := newWalkerFixture(t)

	definition := &models.WorkflowDefinition{
		EntryNodeID: "wait",
		Nodes: []*models.WorkflowNode{
			{
				ID:     "wait",
				Name:   "Wait",
				Type:   models.NodeTypeDelay,
				Config: map[string]any{"duration": "1h"},
			},
		},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	result, err := f.walker.Visit(context.Background(), execution.ID)
	require.NoError(t, err)

	// A trailing delay has nothing to resume into, so the run just finishes.
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Execution.Status)
	assert.Nil(t, result.Execution.ResumeAt)
}

func TestWalker_Visit_TerminalExecutionIsNoOp(t *testing.T) {
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

	trailBefore := len(f.trail(t, execution.ID))

	again, err := f.walker.Visit(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHalted, again.Outcome)
	assert.Empty(t, again.Events)
	assert.Len(t, f.trail(t, execution.ID), trailBefore)
}

func TestWalker_Visit_ContendedLeaseIsTransient(t *testing.T) {
	f := newWalkerFixture(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		EntryNodeID: "a",
		Nodes:       []*models.WorkflowNode{actionNode("a", nil)},
	}
	workflow := f.createActiveWorkflow(t, definition)
	execution := f.createExecution(t, workflow.ID, "lead-1")

	lease, err := f.locker.Acquire(ctx, lock.ExecutionKey(execution.ID), time.Minute)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, lease.Release(ctx))
	}()

	_, err = f.walker.Visit(ctx, execution.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVisitContended))
	assert.True(t, IsTransient(err))
	assert.True(t, IsTransient(ErrWorkflowSaturated))
}
