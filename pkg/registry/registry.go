// Package registry provides the dispatcher lookup table mapping node types to
// their handler factories.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.NodeHandlerFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.NodeHandlerFactory),
	}
}

func (r *Registry) RegisterNode(factory protocol.NodeHandlerFactory) {
	r.factories[factory.ID()] = factory
}

// CreateHandler builds a handler instance for the node type with the node's
// config applied.
func (r *Registry) CreateHandler(nodeType string, config map[string]any) (protocol.NodeHandler, error) {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	return factory.Create(config)
}

// Schema returns the config schema published by the node type's factory.
func (r *Registry) Schema(nodeType string) (map[string]any, bool) {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, false
	}

	return factory.Schema(), true
}

// HasHandler reports whether the node type is registered.
func (r *Registry) HasHandler(nodeType string) bool {
	_, ok := r.factories[nodeType]

	return ok
}

// NodeTypes lists all registered node types.
func (r *Registry) NodeTypes() []string {
	types := make([]string, 0, len(r.factories))
	for nodeType := range r.factories {
		types = append(types, nodeType)
	}

	return types
}
