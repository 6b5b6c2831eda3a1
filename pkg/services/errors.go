// Package services provides the business operations behind the operator API:
// workflow authoring and lifecycle, execution triggering and lead membership
// management.
package services

import (
	"errors"
	"fmt"

	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/workflow"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidStatus        = errors.New("invalid workflow status")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrDefinitionRequired   = errors.New("workflow definition is required")
	ErrLeadIDRequired       = errors.New("lead ID is required")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowNotEditable = errors.New("workflow is not editable in its current status")
	ErrInvalidTransition   = errors.New("workflow status transition not allowed")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrDefinitionRequired) ||
		errors.Is(err, ErrLeadIDRequired) ||
		workflow.IsValidationError(err)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowNotEditable) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, workflow.ErrWorkflowNotExecutable) ||
		errors.Is(err, workflow.ErrLeadNotEligible) ||
		errors.Is(err, workflow.ErrLeadExecutionInFlight) ||
		errors.Is(err, workflow.ErrExecutionTerminal)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) ||
		persistence.IsExecutionNotFound(err) ||
		persistence.IsVersionNotFound(err) ||
		persistence.IsLeadNotFound(err) ||
		persistence.IsNodeNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
