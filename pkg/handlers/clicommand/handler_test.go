package clicommand

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskContext(outputs map[string]any) *workflow.TaskContext {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ec := workflow.NewExecutionContext("w1", "exec-1", []*models.Task{{ID: "build"}, {ID: "run"}})

	for id, output := range outputs {
		ec.SetOutput(id, output)
	}

	return ec.Fork("run", logger)
}

func skipWithoutShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestHandler_Success(t *testing.T) {
	skipWithoutShell(t)

	h := New(slog.Default())
	tc := newTaskContext(map[string]any{"build": map[string]any{"version": "1.2.3"}})

	task := &models.Task{ID: "run", Function: models.CLICommand{
		Command: "sh",
		Args:    []string{"-c", "echo release-$0 $GREETING", "{{ .tasks.build.version }}"},
		Env:     map[string]string{"GREETING": "hello"},
	}}

	result, err := h.Execute(context.Background(), task, tc)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "release-1.2.3 hello\n", output["stdout"])
	assert.Equal(t, 0, output["exit_code"])
	assert.Contains(t, tc.Lines(), "release-1.2.3 hello")
}

func TestHandler_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)

	h := New(slog.Default())

	task := &models.Task{ID: "run", Function: models.CLICommand{
		Command: "sh",
		Args:    []string{"-c", "echo broken >&2; exit 3"},
	}}

	result, err := h.Execute(context.Background(), task, newTaskContext(nil))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "command exited with code 3: broken", result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, output["exit_code"])
}

func TestHandler_WorkingDir(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/marker.txt", []byte("x"), 0o600))

	task := &models.Task{ID: "run", Function: &models.CLICommand{Command: "ls", WorkingDir: dir}}

	result, err := New(slog.Default()).Execute(context.Background(), task, newTaskContext(nil))
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Output.(map[string]any)["stdout"], "marker.txt")
}

func TestHandler_MissingBinary(t *testing.T) {
	task := &models.Task{ID: "run", Function: models.CLICommand{Command: "taskflow-definitely-missing-binary"}}

	result, err := New(slog.Default()).Execute(context.Background(), task, newTaskContext(nil))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to run taskflow-definitely-missing-binary")
}

func TestHandler_WrongFunction(t *testing.T) {
	task := &models.Task{ID: "run", Function: models.UserInputPrompt{Prompt: "?"}}

	result, err := New(slog.Default()).Execute(context.Background(), task, newTaskContext(nil))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not a cli command")
}
