package models

// NodeType is the closed set of node kinds the walker can dispatch.
type NodeType string

const (
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeWebhook   NodeType = "webhook"
)

// WorkflowNode is one vertex of a workflow graph. Successor edges live on the
// node itself: condition nodes use TrueNodeID/FalseNodeID, every other type
// uses NextNodeID. A node without an applicable successor is terminal.
type WorkflowNode struct {
	ID          string         `json:"id"   validate:"required"`
	WorkflowID  string         `json:"workflow_id"`
	Name        string         `json:"name" validate:"required,min=1"`
	Type        NodeType       `json:"type" validate:"required,oneof=action condition delay webhook"`
	Config      map[string]any `json:"config,omitempty"`
	PositionX   int            `json:"position_x"` // Layout hint only
	PositionY   int            `json:"position_y"` // Layout hint only
	NextNodeID  *string        `json:"next_node_id,omitempty"`
	TrueNodeID  *string        `json:"true_node_id,omitempty"`
	FalseNodeID *string        `json:"false_node_id,omitempty"`
}

// IsBranching reports whether the node routes on a boolean result.
func (n *WorkflowNode) IsBranching() bool {
	return n.Type == NodeTypeCondition
}

// HasAmbiguousEdges reports whether both the unconditional and the boolean
// edge fields are populated. This is a data error rejected at save time; the
// walker treats it as fatal if it ever observes one at run time.
func (n *WorkflowNode) HasAmbiguousEdges() bool {
	if n.IsBranching() {
		return n.NextNodeID != nil
	}

	return n.TrueNodeID != nil || n.FalseNodeID != nil
}

// Successor returns the next node ID for a non-branching node, or nil when
// the node is terminal.
func (n *WorkflowNode) Successor() *string {
	return n.NextNodeID
}

// BranchSuccessor returns the next node ID for a branching node given the
// evaluated condition result.
func (n *WorkflowNode) BranchSuccessor(result bool) *string {
	if result {
		return n.TrueNodeID
	}

	return n.FalseNodeID
}
