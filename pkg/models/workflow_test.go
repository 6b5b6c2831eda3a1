package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkflow_StatusTransitions(t *testing.T) {
	cases := []struct {
		from    WorkflowStatus
		to      WorkflowStatus
		allowed bool
	}{
		{WorkflowStatusDraft, WorkflowStatusActive, true},
		{WorkflowStatusDraft, WorkflowStatusArchived, true},
		{WorkflowStatusDraft, WorkflowStatusPaused, false},
		{WorkflowStatusActive, WorkflowStatusPaused, true},
		{WorkflowStatusActive, WorkflowStatusMaintenance, true},
		{WorkflowStatusActive, WorkflowStatusDraft, false},
		{WorkflowStatusPaused, WorkflowStatusActive, true},
		{WorkflowStatusMaintenance, WorkflowStatusActive, true},
		{WorkflowStatusMaintenance, WorkflowStatusPaused, false},
		{WorkflowStatusArchived, WorkflowStatusActive, false},
		{WorkflowStatusArchived, WorkflowStatusDraft, false},
	}

	for _, tc := range cases {
		w := &Workflow{Status: tc.from}
		assert.Equal(t, tc.allowed, w.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestWorkflow_Editability(t *testing.T) {
	assert.True(t, (&Workflow{Status: WorkflowStatusDraft}).IsEditable())
	assert.True(t, (&Workflow{Status: WorkflowStatusPaused}).IsEditable())
	assert.False(t, (&Workflow{Status: WorkflowStatusActive}).IsEditable())
	assert.False(t, (&Workflow{Status: WorkflowStatusMaintenance}).IsEditable())
	assert.False(t, (&Workflow{Status: WorkflowStatusArchived}).IsEditable())
}

func TestWorkflow_Executability(t *testing.T) {
	active := &Workflow{Status: WorkflowStatusActive, Type: WorkflowTypeAutomation}
	assert.True(t, active.IsExecutable())

	// Blueprints are library templates and never run.
	blueprint := &Workflow{Status: WorkflowStatusActive, Type: WorkflowTypeBlueprint}
	assert.False(t, blueprint.IsExecutable())

	paused := &Workflow{Status: WorkflowStatusPaused, Type: WorkflowTypeAutomation}
	assert.False(t, paused.IsExecutable())
}

func TestWorkflowType_Capabilities(t *testing.T) {
	assert.True(t, WorkflowTypeAutomation.Capabilities().Conditions)
	assert.False(t, WorkflowTypeDrip.Capabilities().Conditions)
	assert.True(t, WorkflowTypeDrip.Capabilities().Scheduling)
	assert.False(t, WorkflowTypeBroadcast.Capabilities().Scheduling)
	assert.Equal(t, Capabilities{}, WorkflowTypeBlueprint.Capabilities())
}

func TestWorkflowMetrics_AverageDuration(t *testing.T) {
	assert.Zero(t, WorkflowMetrics{}.AverageDuration())

	m := WorkflowMetrics{SuccessCount: 2, FailureCount: 2, TotalDuration: 8 * time.Second}
	assert.Equal(t, 2*time.Second, m.AverageDuration())
}

func TestWorkflow_MaxConcurrentExecutions(t *testing.T) {
	assert.Equal(t, 1, (&Workflow{Priority: 0}).MaxConcurrentExecutions())
	assert.Equal(t, 4, (&Workflow{Priority: 1}).MaxConcurrentExecutions())
	assert.Equal(t, 40, (&Workflow{Priority: 10}).MaxConcurrentExecutions())
}
