package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(id string) *string {
	return &id
}

func TestWorkflowNode_Edges(t *testing.T) {
	condition := &WorkflowNode{
		Type:        NodeTypeCondition,
		TrueNodeID:  edge("yes"),
		FalseNodeID: edge("no"),
	}
	assert.True(t, condition.IsBranching())
	assert.False(t, condition.HasAmbiguousEdges())
	assert.Equal(t, "yes", *condition.BranchSuccessor(true))
	assert.Equal(t, "no", *condition.BranchSuccessor(false))

	// A condition with an unconditional edge is ambiguous.
	condition.NextNodeID = edge("next")
	assert.True(t, condition.HasAmbiguousEdges())

	action := &WorkflowNode{Type: NodeTypeAction, NextNodeID: edge("next")}
	assert.False(t, action.IsBranching())
	assert.False(t, action.HasAmbiguousEdges())
	assert.Equal(t, "next", *action.Successor())

	// An action with a boolean edge is ambiguous.
	action.TrueNodeID = edge("yes")
	assert.True(t, action.HasAmbiguousEdges())

	terminal := &WorkflowNode{Type: NodeTypeAction}
	assert.Nil(t, terminal.Successor())
}

func TestWorkflowDefinition_StepLimit(t *testing.T) {
	assert.Equal(t, DefaultMaxSteps, (&WorkflowDefinition{}).StepLimit())
	assert.Equal(t, 25, (&WorkflowDefinition{MaxSteps: 25}).StepLimit())
}

func TestWorkflowDefinition_Clone(t *testing.T) {
	original := &WorkflowDefinition{
		EntryNodeID: "a",
		Nodes: []*WorkflowNode{
			{
				ID:         "a",
				Name:       "A",
				Type:       NodeTypeAction,
				Config:     map[string]any{"merge": map[string]any{"k": "v"}},
				NextNodeID: edge("b"),
			},
			{ID: "b", Name: "B", Type: NodeTypeAction},
		},
	}

	clone := original.Clone()

	// Mutating the original must not reach the clone.
	original.Nodes[0].Config["merge"] = "changed"
	*original.Nodes[0].NextNodeID = "elsewhere"
	original.Nodes[0].Name = "renamed"

	node, ok := clone.Node("a")
	require.True(t, ok)
	assert.Equal(t, "A", node.Name)
	assert.Equal(t, "b", *node.NextNodeID)
	assert.NotEqual(t, "changed", node.Config["merge"])
}

func TestWorkflowExecution_MergePayload(t *testing.T) {
	execution := &WorkflowExecution{}

	execution.MergePayload(nil)
	assert.Nil(t, execution.Payload)

	execution.MergePayload(map[string]any{"a": 1})
	execution.MergePayload(map[string]any{"a": 2, "b": 3})

	assert.Equal(t, 2, execution.Payload["a"])
	assert.Equal(t, 3, execution.Payload["b"])

	// Snapshots are isolated from later merges.
	snapshot := execution.PayloadSnapshot()
	execution.MergePayload(map[string]any{"a": 9})
	assert.Equal(t, 2, snapshot["a"])
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionStatusPending.IsTerminal())
	assert.False(t, ExecutionStatusRunning.IsTerminal())
	assert.True(t, ExecutionStatusCompleted.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
	assert.True(t, ExecutionStatusCancelled.IsTerminal())
}
