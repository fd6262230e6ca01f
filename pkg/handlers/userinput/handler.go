// Package userinput suspends a workflow until a value is supplied on resume.
package userinput

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
)

type Handler struct{}

func New() *Handler {
	return &Handler{}
}

// Execute never completes the task; completion comes from the value passed
// to a resume call.
func (h *Handler) Execute(_ context.Context, task *models.Task, tc protocol.TaskContext) (models.TaskResult, error) {
	var prompt models.UserInputPrompt

	switch fn := task.Function.(type) {
	case models.UserInputPrompt:
		prompt = fn
	case *models.UserInputPrompt:
		prompt = *fn
	default:
		return models.FailureResult(fmt.Sprintf("task %s is not a user input prompt", task.ID)), nil
	}

	tc.Log("Waiting for input: %s", prompt.Prompt)

	fields := map[string]any{"prompt": prompt.Prompt}
	if prompt.InputType != "" {
		fields["input_type"] = prompt.InputType
	}

	if prompt.Default != "" {
		fields["default"] = prompt.Default
	}

	return models.WaitingForInputResult(fields), nil
}
