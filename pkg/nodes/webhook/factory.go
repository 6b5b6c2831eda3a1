package webhook

import (
	"github.com/leadflow/leadflow/pkg/protocol"
)

// HandlerFactory creates webhook handlers.
type HandlerFactory struct{}

func NewHandlerFactory() protocol.NodeHandlerFactory {
	return &HandlerFactory{}
}

func (f *HandlerFactory) Create(config map[string]any) (protocol.NodeHandler, error) {
	return NewHandler(config)
}

func (f *HandlerFactory) ID() string {
	return "webhook"
}

func (f *HandlerFactory) Name() string {
	return "Webhook"
}

func (f *HandlerFactory) Description() string {
	return "Calls an external HTTP endpoint and merges the response into the payload."
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL. Supports templating.",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method, defaults to POST.",
				"enum":        []any{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Additional request headers.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Templated request body.",
			},
			"timeout": map[string]any{
				"type":        "string",
				"description": "Request timeout as a Go duration string, defaults to 30s.",
			},
		},
		"required": []any{"url"},
	}
}
