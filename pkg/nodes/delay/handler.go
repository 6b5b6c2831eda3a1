// Package delay provides the deferred re-visit node. The walker never blocks
// on a delay: the handler reports when the execution should resume and the
// external dispatcher schedules the re-visit.
package delay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadflow/leadflow/pkg/protocol"
)

type Handler struct {
	duration time.Duration
}

func NewHandler(config map[string]any) (*Handler, error) {
	raw, ok := config["duration"].(string)
	if !ok {
		return nil, errors.New("missing required field 'duration'")
	}

	duration, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %q", raw)
	}

	return &Handler{duration: duration}, nil
}

func (h *Handler) Execute(_ context.Context, req protocol.DispatchRequest, logger *slog.Logger) (*protocol.DispatchResult, error) {
	resumeAt := time.Now().UTC().Add(h.duration)

	logger.Debug("Delay node deferring execution", "node_id", req.Node.ID, "resume_at", resumeAt)

	return &protocol.DispatchResult{DeferUntil: &resumeAt}, nil
}
