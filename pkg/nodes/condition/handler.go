// Package condition provides the boolean branching node. The walker routes
// the execution to the true or false successor based on the result.
package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/template"
)

type Handler struct {
	condition string
}

func NewHandler(config map[string]any) (*Handler, error) {
	condition, ok := config["condition"].(string)
	if !ok {
		return nil, errors.New("missing required field 'condition'")
	}

	return &Handler{condition: condition}, nil
}

func (h *Handler) Execute(_ context.Context, req protocol.DispatchRequest, logger *slog.Logger) (*protocol.DispatchResult, error) {
	rendered, err := template.RenderWithExecution(h.condition, req.Execution)
	if err != nil {
		return nil, fmt.Errorf("condition evaluation failed: %w", err)
	}

	result := truthy(rendered)

	logger.Debug("Condition evaluated", "node_id", req.Node.ID, "result", result, "value", rendered)

	return &protocol.DispatchResult{Branch: &result}, nil
}

// truthy converts a rendered template value to a boolean. Empty strings,
// "false", zero numbers, nil and empty collections are false; everything else
// is true.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		if v == "" || v == "false" {
			return false
		}

		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n != 0
		}

		return true
	case float64:
		return v != 0
	case int:
		return v != 0
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}
