package action

import (
	"github.com/leadflow/leadflow/pkg/protocol"
)

// HandlerFactory creates action handlers.
type HandlerFactory struct{}

func NewHandlerFactory() protocol.NodeHandlerFactory {
	return &HandlerFactory{}
}

func (f *HandlerFactory) Create(config map[string]any) (protocol.NodeHandler, error) {
	return NewHandler(config)
}

func (f *HandlerFactory) ID() string {
	return "action"
}

func (f *HandlerFactory) Name() string {
	return "Action"
}

func (f *HandlerFactory) Description() string {
	return "Renders templated values against the execution state and merges them into the payload."
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"merge": map[string]any{
				"type":        "object",
				"description": "Map of payload keys to templated values. String values support templating.",
			},
		},
		"required": []any{"merge"},
	}
}
