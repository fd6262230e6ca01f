// Package protocol defines the contracts between the workflow engine and the
// task handlers it dispatches to.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/taskflow/pkg/models"
)

// TaskContext is the private handle a handler receives for one dispatch.
// Log lines written through it are merged into the run's per-task logs once
// the round completes.
type TaskContext interface {
	WorkflowID() string
	ExecutionID() string
	TaskID() string

	// Output returns the recorded output of a completed task.
	Output(taskID string) (any, bool)
	// Outputs returns a copy of every recorded task output.
	Outputs() map[string]any

	Log(format string, args ...any)
	Logger() *slog.Logger
}

// Handler executes tasks of one function type.
type Handler interface {
	Execute(ctx context.Context, task *models.Task, tc TaskContext) (models.TaskResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *models.Task, tc TaskContext) (models.TaskResult, error)

func (f HandlerFunc) Execute(ctx context.Context, task *models.Task, tc TaskContext) (models.TaskResult, error) {
	return f(ctx, task, tc)
}
