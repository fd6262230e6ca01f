// Package services records workflow runs through the persistence layer.
package services

import (
	"errors"
	"fmt"
)

var (
	ErrWorkflowNil      = errors.New("workflow cannot be nil")
	ErrExecutionIDEmpty = errors.New("execution ID cannot be empty")
	ErrNotResumable     = errors.New("execution is not waiting for input")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op          string // Operation name
	ExecutionID string // Execution the operation was about, if any
	Err         error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.ExecutionID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ExecutionID, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newServiceError(op, executionID string, err error) *ServiceError {
	return &ServiceError{Op: op, ExecutionID: executionID, Err: err}
}

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrExecutionIDEmpty) ||
		errors.Is(err, ErrNotResumable)
}
