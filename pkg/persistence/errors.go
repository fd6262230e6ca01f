// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates no workflow execution exists for the id.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrWorkflowMetadataNotFound indicates no workflow metadata exists for the id.
	ErrWorkflowMetadataNotFound = errors.New("workflow metadata not found")

	// ErrTaskExecutionNotFound indicates no task execution exists for the pair of ids.
	ErrTaskExecutionNotFound = errors.New("task execution not found")

	// ErrSettingNotFound indicates no setting exists for the key.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrSerialization indicates a record could not be encoded or decoded.
	// These errors are never retried.
	ErrSerialization = errors.New("serialization failed")

	// ErrInvalidRecord indicates a record failed validation before a write.
	ErrInvalidRecord = errors.New("invalid record")
)

// StoreError wraps store failures with the operation and key involved.
type StoreError struct {
	Op  string // Operation being performed (e.g., "SaveExecution", "DeleteExecution")
	Key string // Primary key of the record, if applicable
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Key, e.Err)
	}

	return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// SerializationError marks err as a (de)serialization failure of the named record.
func SerializationError(record string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSerialization, record, err)
}

// IsNotFound checks if an error indicates any record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrWorkflowMetadataNotFound) ||
		errors.Is(err, ErrTaskExecutionNotFound) ||
		errors.Is(err, ErrSettingNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsSerialization checks if an error is a (de)serialization failure.
func IsSerialization(err error) bool {
	return errors.Is(err, ErrSerialization)
}
