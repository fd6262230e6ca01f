// Package log implements the "log" custom function: it renders a message
// template against predecessor outputs and writes it to the task log.
package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/template"
)

// FunctionType is the registry key of the handler.
const FunctionType = "log"

type Handler struct{}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) Execute(ctx context.Context, task *models.Task, tc protocol.TaskContext) (models.TaskResult, error) {
	fn, ok := task.Function.(models.CustomFunction)
	if !ok {
		return models.FailureResult(fmt.Sprintf("task %s is not a log function", task.ID)), nil
	}

	raw, _ := fn.Input["message"].(string)

	message, err := template.RenderString(raw, template.Data(tc))
	if err != nil {
		return models.FailureResult(err.Error()), nil
	}

	level := slog.LevelInfo
	if s, ok := fn.Input["level"].(string); ok {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return models.FailureResult(fmt.Sprintf("invalid log level %q", s)), nil
		}
	}

	tc.Log("%s", message)
	tc.Logger().Log(ctx, level, message, "task_id", task.ID)

	return models.SuccessResult(map[string]any{"message": message}), nil
}
