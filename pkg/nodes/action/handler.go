// Package action provides the generic payload-transform node. Its config
// declares templated values that are rendered against the execution state and
// merged into the payload.
package action

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/template"
)

type Handler struct {
	merge map[string]any
}

func NewHandler(config map[string]any) (*Handler, error) {
	merge, ok := config["merge"].(map[string]any)
	if !ok {
		return nil, errors.New("missing required field 'merge'")
	}

	return &Handler{merge: merge}, nil
}

func (h *Handler) Execute(_ context.Context, req protocol.DispatchRequest, logger *slog.Logger) (*protocol.DispatchResult, error) {
	output, err := template.RenderMap(h.merge, req.Execution)
	if err != nil {
		return nil, err
	}

	logger.Debug("Action node produced output", "node_id", req.Node.ID, "keys", len(output))

	return &protocol.DispatchResult{Output: output}, nil
}
