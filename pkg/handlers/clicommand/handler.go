// Package clicommand runs cli_command tasks as local processes.
package clicommand

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/template"
)

type Handler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger.With("handler", models.FunctionTypeCLICommand)}
}

func (h *Handler) Execute(ctx context.Context, task *models.Task, tc protocol.TaskContext) (models.TaskResult, error) {
	command, err := commandOf(task)
	if err != nil {
		return models.FailureResult(err.Error()), nil
	}

	data := template.Data(tc)

	args := make([]string, 0, len(command.Args))
	for _, arg := range command.Args {
		rendered, err := template.RenderString(arg, data)
		if err != nil {
			return models.FailureResult(fmt.Sprintf("failed to render argument: %v", err)), nil
		}

		args = append(args, rendered)
	}

	cmd := exec.CommandContext(ctx, command.Command, args...)
	cmd.Dir = command.WorkingDir
	cmd.Env = os.Environ()
	for key, value := range command.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	tc.Log("$ %s", strings.Join(append([]string{command.Command}, args...), " "))
	h.logger.DebugContext(ctx, "Running command", "task_id", task.ID, "command", command.Command, "args", args)

	runErr := cmd.Run()

	output := map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": 0,
	}

	for _, line := range nonEmptyLines(stdout.String()) {
		tc.Log("%s", line)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return models.FailureResult(fmt.Sprintf("failed to run %s: %v", command.Command, runErr)), nil
		}

		output["exit_code"] = exitErr.ExitCode()

		message := fmt.Sprintf("command exited with code %d", exitErr.ExitCode())
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			message += ": " + msg
		}

		return models.TaskResult{Success: false, Output: output, Error: message}, nil
	}

	return models.SuccessResult(output), nil
}

func commandOf(task *models.Task) (models.CLICommand, error) {
	switch fn := task.Function.(type) {
	case models.CLICommand:
		return fn, nil
	case *models.CLICommand:
		return *fn, nil
	default:
		return models.CLICommand{}, fmt.Errorf("task %s is not a cli command", task.ID)
	}
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}
