package condition

import (
	"github.com/leadflow/leadflow/pkg/protocol"
)

// HandlerFactory creates condition handlers.
type HandlerFactory struct{}

func NewHandlerFactory() protocol.NodeHandlerFactory {
	return &HandlerFactory{}
}

func (f *HandlerFactory) Create(config map[string]any) (protocol.NodeHandler, error) {
	return NewHandler(config)
}

func (f *HandlerFactory) ID() string {
	return "condition"
}

func (f *HandlerFactory) Name() string {
	return "Condition"
}

func (f *HandlerFactory) Description() string {
	return "Evaluates a condition against the execution state and routes to the true or false successor."
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "Condition expression to evaluate. Supports templating.",
				"examples": []any{
					`{{.payload.status}}`,
					`{{gt .payload.score 75.0}}`,
					`true`,
				},
			},
		},
		"required": []any{"condition"},
	}
}
