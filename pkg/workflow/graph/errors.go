package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrCircularDependency indicates the dependency relation contains a cycle.
	ErrCircularDependency = errors.New("circular dependency")

	// ErrInvalidDependency indicates a task depends on an id outside the task set.
	ErrInvalidDependency = errors.New("invalid dependency")

	// ErrDuplicateTask indicates two tasks share an id.
	ErrDuplicateTask = errors.New("duplicate task id")
)

// DependencyError carries the task and dependency ids behind a graph error.
type DependencyError struct {
	TaskID       string
	DependencyID string
	Err          error
}

func (e *DependencyError) Error() string {
	if e.DependencyID != "" {
		return fmt.Sprintf("%v: task %s depends on %s", e.Err, e.TaskID, e.DependencyID)
	}

	return fmt.Sprintf("%v: task %s", e.Err, e.TaskID)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// IsCircularDependency reports whether err is a cycle error.
func IsCircularDependency(err error) bool {
	return errors.Is(err, ErrCircularDependency)
}

// IsInvalidDependency reports whether err is a dangling dependency error.
func IsInvalidDependency(err error) bool {
	return errors.Is(err, ErrInvalidDependency)
}
