// Package workflow implements the execution engine: the graph walker, the
// execution context service, version pinning, the audit journal and the
// lead membership tracker.
package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotExecutable indicates the workflow status or type does not
	// permit creating executions.
	ErrWorkflowNotExecutable = errors.New("workflow is not executable")

	// ErrLeadNotEligible indicates the lead membership is paused, removed or
	// completed, so no execution may start or advance.
	ErrLeadNotEligible = errors.New("lead is not eligible to run")

	// ErrLeadExecutionInFlight indicates another execution for the same
	// (workflow, lead) pair is already running.
	ErrLeadExecutionInFlight = errors.New("an execution is already in flight for this lead")

	// ErrLoopLimitExceeded indicates a cyclic graph exceeded the per-execution
	// step bound. The execution fails; it never silently stops.
	ErrLoopLimitExceeded = errors.New("workflow execution loop limit exceeded")

	// ErrAmbiguousNodeEdges indicates a node carries both unconditional and
	// boolean successor edges. Rejected at validation time.
	ErrAmbiguousNodeEdges = errors.New("node carries both unconditional and boolean edges")

	// ErrVisitContended indicates another visit currently holds the execution
	// lease. Transient; the dispatcher retries later.
	ErrVisitContended = errors.New("execution visit contended")

	// ErrWorkflowSaturated indicates the workflow already has its maximum
	// number of concurrent visits in flight. Transient; the dispatcher
	// retries later.
	ErrWorkflowSaturated = errors.New("workflow concurrency limit reached")

	// ErrExecutionTerminal indicates a mutation was attempted on an already
	// terminal execution.
	ErrExecutionTerminal = errors.New("execution already terminal")

	// Definition validation errors.
	ErrDefinitionEmpty        = errors.New("definition must contain at least one node")
	ErrEntryNodeMissing       = errors.New("entry node not found in definition")
	ErrUnknownSuccessor       = errors.New("node references an unknown successor")
	ErrUnknownNodeType        = errors.New("node type has no registered handler")
	ErrBranchEdgesIncomplete  = errors.New("condition node must define both true and false successors")
	ErrCapabilityNotSupported = errors.New("workflow type does not support this node type")
	ErrConfigSchemaViolation  = errors.New("node config violates its schema")
)

// ValidationError pinpoints the node that failed definition validation.
type ValidationError struct {
	WorkflowID string
	NodeID     string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("workflow %s node %s: %v", e.WorkflowID, e.NodeID, e.Err)
	}

	return fmt.Sprintf("workflow %s: %v", e.WorkflowID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error arose from definition validation.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// IsTransient checks if an error is a concurrency conflict the dispatcher
// should retry rather than record as a workflow failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrVisitContended) || errors.Is(err, ErrWorkflowSaturated)
}
