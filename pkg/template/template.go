// Package template provides templating for dynamic node configuration.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

// RenderWithExecution renders a template string against the execution's
// accumulated state.
func RenderWithExecution(input string, execution *models.WorkflowExecution) (any, error) {
	data := map[string]any{
		"payload": execution.Payload,
		"execution": map[string]any{
			"id":          execution.ID,
			"workflow_id": execution.WorkflowID,
			"lead_id":     execution.LeadID,
			"step_count":  execution.StepCount,
		},
	}

	return Render(input, data)
}

// Render executes a template string against arbitrary data. Results that
// look like JSON objects or arrays are decoded, so templates can produce
// structured payload updates.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	return result, nil
}

// RenderMap renders every string value of a config map, leaving other value
// kinds untouched.
func RenderMap(config map[string]any, execution *models.WorkflowExecution) (map[string]any, error) {
	rendered := make(map[string]any, len(config))

	for key, value := range config {
		str, ok := value.(string)
		if !ok {
			rendered[key] = value

			continue
		}

		out, err := RenderWithExecution(str, execution)
		if err != nil {
			return nil, fmt.Errorf("failed to render config key %q: %w", key, err)
		}

		rendered[key] = out
	}

	return rendered, nil
}
