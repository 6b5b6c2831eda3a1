package models

// DefaultMaxSteps bounds node visits per execution so cyclic graphs always
// terminate.
const DefaultMaxSteps = 100

// WorkflowDefinition is the graph portion of a workflow: its nodes and the
// entry point. Edges are carried on the nodes themselves.
type WorkflowDefinition struct {
	EntryNodeID string          `json:"entry_node_id" validate:"required"`
	Nodes       []*WorkflowNode `json:"nodes"         validate:"required,min=1,dive"`
	MaxSteps    int             `json:"max_steps,omitempty"`
}

// Node returns the node with the given ID.
func (d *WorkflowDefinition) Node(nodeID string) (*WorkflowNode, bool) {
	for _, node := range d.Nodes {
		if node.ID == nodeID {
			return node, true
		}
	}

	return nil, false
}

// EntryNode returns the definition's entry node.
func (d *WorkflowDefinition) EntryNode() (*WorkflowNode, bool) {
	return d.Node(d.EntryNodeID)
}

// StepLimit returns the configured visit bound, falling back to
// DefaultMaxSteps.
func (d *WorkflowDefinition) StepLimit() int {
	if d.MaxSteps > 0 {
		return d.MaxSteps
	}

	return DefaultMaxSteps
}

// EdgeCount counts successor references across all nodes.
func (d *WorkflowDefinition) EdgeCount() int {
	count := 0

	for _, node := range d.Nodes {
		for _, edge := range []*string{node.NextNodeID, node.TrueNodeID, node.FalseNodeID} {
			if edge != nil {
				count++
			}
		}
	}

	return count
}

// Clone returns a deep copy of the definition. Version snapshots clone so
// later edits to the live workflow never reach a pinned graph.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	clone := &WorkflowDefinition{
		EntryNodeID: d.EntryNodeID,
		MaxSteps:    d.MaxSteps,
		Nodes:       make([]*WorkflowNode, 0, len(d.Nodes)),
	}

	for _, node := range d.Nodes {
		copied := *node
		copied.Config = cloneMap(node.Config)
		copied.NextNodeID = cloneStringPtr(node.NextNodeID)
		copied.TrueNodeID = cloneStringPtr(node.TrueNodeID)
		copied.FalseNodeID = cloneStringPtr(node.FalseNodeID)
		clone.Nodes = append(clone.Nodes, &copied)
	}

	return clone
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}

	copied := *s

	return &copied
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	copied := make(map[string]any, len(m))
	for k, v := range m {
		copied[k] = v
	}

	return copied
}
