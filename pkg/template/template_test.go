package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/models"
)

func testExecution() *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		LeadID:     "lead-1",
		StepCount:  2,
		Payload: map[string]any{
			"name":  "Ada",
			"score": 85.0,
		},
	}
}

func TestRenderWithExecution(t *testing.T) {
	result, err := RenderWithExecution("Hello {{.payload.name}}", testExecution())
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", result)

	result, err = RenderWithExecution("{{.execution.lead_id}}", testExecution())
	require.NoError(t, err)
	assert.Equal(t, "lead-1", result)
}

func TestRender_DecodesJSONResults(t *testing.T) {
	result, err := Render(`{"lead": "{{.payload.name}}"}`, map[string]any{
		"payload": map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)

	decoded, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", decoded["lead"])
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{.unclosed", nil)
	require.Error(t, err)
}

func TestRenderMap_RendersOnlyStrings(t *testing.T) {
	rendered, err := RenderMap(map[string]any{
		"greeting": "Hi {{.payload.name}}",
		"count":    3,
	}, testExecution())
	require.NoError(t, err)

	assert.Equal(t, "Hi Ada", rendered["greeting"])
	assert.Equal(t, 3, rendered["count"])
}
