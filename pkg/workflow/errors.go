package workflow

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// ErrorKindExecution is raised when a handler panics.
	ErrorKindExecution ErrorKind = "execution"
	// ErrorKindValidation is raised when a workflow cannot be scheduled.
	ErrorKindValidation ErrorKind = "validation"
)

var (
	ErrHandlerPanic    = errors.New("task handler panicked")
	ErrInvalidWorkflow = errors.New("invalid workflow")
)

// EngineError aborts a whole execute or resume call. Task level failures are
// never reported this way; they land in WorkflowResult.Errors.
type EngineError struct {
	Kind   ErrorKind
	TaskID string
	Err    error
}

func (e *EngineError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("%s error in task %s: %v", e.Kind, e.TaskID, e.Err)
	}

	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches ErrHandlerPanic and ErrInvalidWorkflow by kind.
func (e *EngineError) Is(target error) bool {
	switch {
	case errors.Is(target, ErrHandlerPanic):
		return e.Kind == ErrorKindExecution
	case errors.Is(target, ErrInvalidWorkflow):
		return e.Kind == ErrorKindValidation
	default:
		return false
	}
}

func newPanicError(taskID string, recovered any) *EngineError {
	return &EngineError{
		Kind:   ErrorKindExecution,
		TaskID: taskID,
		Err:    fmt.Errorf("%w: %v", ErrHandlerPanic, recovered),
	}
}

func newValidationError(taskID string, err error) *EngineError {
	return &EngineError{
		Kind:   ErrorKindValidation,
		TaskID: taskID,
		Err:    err,
	}
}

// IsHandlerPanic reports whether err was caused by a panicking handler.
func IsHandlerPanic(err error) bool {
	var engineErr *EngineError

	return errors.As(err, &engineErr) && engineErr.Kind == ErrorKindExecution
}
