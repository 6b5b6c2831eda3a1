package models

import "time"

// WorkflowVersion is an immutable snapshot of a workflow definition, keyed by
// (WorkflowID, VersionNumber). Every execution pins one version for its whole
// lifetime, so edits to a draft or paused workflow never corrupt an in-flight
// run.
type WorkflowVersion struct {
	ID            string              `json:"id"             validate:"required"`
	WorkflowID    string              `json:"workflow_id"    validate:"required"`
	VersionNumber int                 `json:"version_number" validate:"min=1"`
	Definition    *WorkflowDefinition `json:"definition"     validate:"required"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Node resolves a node in the pinned graph.
func (v *WorkflowVersion) Node(nodeID string) (*WorkflowNode, bool) {
	return v.Definition.Node(nodeID)
}

// EntryNode returns the pinned graph's entry node.
func (v *WorkflowVersion) EntryNode() (*WorkflowNode, bool) {
	return v.Definition.EntryNode()
}
