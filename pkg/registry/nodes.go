package registry

import (
	"github.com/leadflow/leadflow/pkg/nodes/action"
	"github.com/leadflow/leadflow/pkg/nodes/condition"
	"github.com/leadflow/leadflow/pkg/nodes/delay"
	"github.com/leadflow/leadflow/pkg/nodes/webhook"
)

// RegisterDefaultNodes registers all built-in node handler factories.
func (r *Registry) RegisterDefaultNodes() {
	r.RegisterNode(action.NewHandlerFactory())
	r.RegisterNode(condition.NewHandlerFactory())
	r.RegisterNode(delay.NewHandlerFactory())
	r.RegisterNode(webhook.NewHandlerFactory())
}
