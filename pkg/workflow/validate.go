package workflow

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/registry"
)

// Validator checks workflow definitions at save and activation time, so the
// walker can trust the shape of any graph it is handed.
type Validator struct {
	registry *registry.Registry
}

func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// ValidateDefinition verifies the structural invariants of a definition:
// non-empty node set, resolvable entry node, resolvable successor edges,
// unambiguous edges per node type, registered node types, workflow-type
// capability limits, and node configs conforming to their handler schemas.
func (v *Validator) ValidateDefinition(workflow *models.Workflow) error {
	definition := workflow.Definition
	if definition == nil || len(definition.Nodes) == 0 {
		return &ValidationError{WorkflowID: workflow.ID, Err: ErrDefinitionEmpty}
	}

	index := make(map[string]*models.WorkflowNode, len(definition.Nodes))
	for _, node := range definition.Nodes {
		index[node.ID] = node
	}

	if _, ok := index[definition.EntryNodeID]; !ok {
		return &ValidationError{WorkflowID: workflow.ID, Err: ErrEntryNodeMissing}
	}

	capabilities := workflow.Type.Capabilities()

	for _, node := range definition.Nodes {
		if err := v.validateNode(workflow, node, index, capabilities); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateNode(workflow *models.Workflow, node *models.WorkflowNode, index map[string]*models.WorkflowNode, capabilities models.Capabilities) error {
	if !v.registry.HasHandler(string(node.Type)) {
		return &ValidationError{
			WorkflowID: workflow.ID,
			NodeID:     node.ID,
			Err:        fmt.Errorf("%w: %s", ErrUnknownNodeType, node.Type),
		}
	}

	if node.Type == models.NodeTypeCondition && !capabilities.Conditions {
		return &ValidationError{
			WorkflowID: workflow.ID,
			NodeID:     node.ID,
			Err:        fmt.Errorf("%w: %s workflows cannot branch", ErrCapabilityNotSupported, workflow.Type),
		}
	}

	if node.Type == models.NodeTypeDelay && !capabilities.Scheduling {
		return &ValidationError{
			WorkflowID: workflow.ID,
			NodeID:     node.ID,
			Err:        fmt.Errorf("%w: %s workflows cannot delay", ErrCapabilityNotSupported, workflow.Type),
		}
	}

	if node.HasAmbiguousEdges() {
		return &ValidationError{WorkflowID: workflow.ID, NodeID: node.ID, Err: ErrAmbiguousNodeEdges}
	}

	if node.IsBranching() && (node.TrueNodeID == nil || node.FalseNodeID == nil) {
		return &ValidationError{WorkflowID: workflow.ID, NodeID: node.ID, Err: ErrBranchEdgesIncomplete}
	}

	for _, successor := range []*string{node.NextNodeID, node.TrueNodeID, node.FalseNodeID} {
		if successor == nil {
			continue
		}

		if _, ok := index[*successor]; !ok {
			return &ValidationError{
				WorkflowID: workflow.ID,
				NodeID:     node.ID,
				Err:        fmt.Errorf("%w: %s", ErrUnknownSuccessor, *successor),
			}
		}
	}

	return v.validateConfig(workflow, node)
}

func (v *Validator) validateConfig(workflow *models.Workflow, node *models.WorkflowNode) error {
	schema, ok := v.registry.Schema(string(node.Type))
	if !ok || schema == nil {
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return &ValidationError{
			WorkflowID: workflow.ID,
			NodeID:     node.ID,
			Err:        fmt.Errorf("%w: %v", ErrConfigSchemaViolation, err),
		}
	}

	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			if details != "" {
				details += "; "
			}

			details += desc.String()
		}

		return &ValidationError{
			WorkflowID: workflow.ID,
			NodeID:     node.ID,
			Err:        fmt.Errorf("%w: %s", ErrConfigSchemaViolation, details),
		}
	}

	return nil
}
