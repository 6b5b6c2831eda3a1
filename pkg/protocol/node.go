// Package protocol defines the contracts between the graph walker and
// pluggable node handlers.
package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

// DispatchRequest carries everything a handler may read while executing one
// node. Handlers never mutate the execution directly; they return a
// DispatchResult and the walker applies it.
type DispatchRequest struct {
	Node      *models.WorkflowNode
	Execution *models.WorkflowExecution
}

// DispatchResult is the walker-facing outcome of one node execution.
// Exactly one of the optional fields is meaningful per node type: Branch for
// condition nodes, DeferUntil for delay nodes, Output for the rest.
type DispatchResult struct {
	// Output is merged into the execution payload.
	Output map[string]any
	// Branch routes condition nodes to their true/false successor.
	Branch *bool
	// DeferUntil asks the external dispatcher to schedule a re-visit at the
	// given time instead of advancing immediately.
	DeferUntil *time.Time
}

// NodeHandler executes the side effect of one node type. A returned error is
// fatal for the execution; transient retry policy belongs to the caller that
// creates a new execution, never to the walker.
type NodeHandler interface {
	Execute(ctx context.Context, req DispatchRequest, logger *slog.Logger) (*DispatchResult, error)
}

// NodeHandlerFactory creates handler instances bound to a node's config and
// publishes metadata about the node type.
type NodeHandlerFactory interface {
	// Create builds a handler for the given node config.
	Create(config map[string]any) (NodeHandler, error)

	// ID returns the node type this factory serves.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for configuring this node type.
	Schema() map[string]any
}
