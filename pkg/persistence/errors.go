// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNodeNotFound indicates a node was not found by the given identifier.
	ErrNodeNotFound = errors.New("node not found")

	// ErrExecutionNotFound indicates an execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrVersionNotFound indicates a workflow version snapshot was not found.
	ErrVersionNotFound = errors.New("workflow version not found")

	// ErrLeadNotFound indicates no membership exists for the lead.
	ErrLeadNotFound = errors.New("workflow lead not found")

	// ErrLeadAlreadyExists indicates a membership for the (workflow, lead)
	// pair already exists.
	ErrLeadAlreadyExists = errors.New("workflow lead already exists")

	// ErrLeadRevisionConflict indicates an optimistic concurrency conflict on
	// a membership write. Treated as transient by callers.
	ErrLeadRevisionConflict = errors.New("workflow lead revision conflict")
)

// RepositoryError wraps repository errors with operation context.
type RepositoryError struct {
	Op     string // Operation being performed (e.g. "GetByID", "Append")
	Entity string // Entity kind (e.g. "workflow", "execution")
	ID     string // Entity ID if applicable
	Err    error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func (e *RepositoryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRepositoryError creates a repository error with context.
func NewRepositoryError(op, entity, id string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsNodeNotFound checks if an error indicates a missing node.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsVersionNotFound checks if an error indicates a missing version snapshot.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsLeadNotFound checks if an error indicates a missing membership.
func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

// IsLeadAlreadyExists checks if an error indicates a duplicate membership
// for the (workflow, lead) pair.
func IsLeadAlreadyExists(err error) bool {
	return errors.Is(err, ErrLeadAlreadyExists)
}

// IsLeadRevisionConflict checks if an error is a transient optimistic
// concurrency conflict on a membership write.
func IsLeadRevisionConflict(err error) bool {
	return errors.Is(err, ErrLeadRevisionConflict)
}
