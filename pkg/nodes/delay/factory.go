package delay

import (
	"github.com/leadflow/leadflow/pkg/protocol"
)

// HandlerFactory creates delay handlers.
type HandlerFactory struct{}

func NewHandlerFactory() protocol.NodeHandlerFactory {
	return &HandlerFactory{}
}

func (f *HandlerFactory) Create(config map[string]any) (protocol.NodeHandler, error) {
	return NewHandler(config)
}

func (f *HandlerFactory) ID() string {
	return "delay"
}

func (f *HandlerFactory) Name() string {
	return "Delay"
}

func (f *HandlerFactory) Description() string {
	return "Defers the execution for a fixed duration. The dispatcher schedules the re-visit."
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration": map[string]any{
				"type":        "string",
				"description": "Go duration string, e.g. '30s', '5m', '24h'.",
				"examples":    []any{"30s", "5m", "24h"},
			},
		},
		"required": []any{"duration"},
	}
}
