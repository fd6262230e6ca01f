package userinput

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute(t *testing.T) {
	ec := workflow.NewExecutionContext("w1", "exec-1", []*models.Task{{ID: "approve"}})
	tc := ec.Fork("approve", slog.Default())

	task := &models.Task{ID: "approve", Function: models.UserInputPrompt{Prompt: "Deploy?", InputType: "bool"}}

	result, err := New().Execute(context.Background(), task, tc)
	require.NoError(t, err)
	assert.True(t, result.IsWaitingForInput())

	output := result.Output.(map[string]any)
	assert.Equal(t, "Deploy?", output["prompt"])
	assert.Equal(t, "bool", output["input_type"])
	assert.NotContains(t, output, "default")
	assert.Equal(t, []string{"Waiting for input: Deploy?"}, tc.Lines())
}

func TestHandler_WrongFunction(t *testing.T) {
	ec := workflow.NewExecutionContext("w1", "exec-1", []*models.Task{{ID: "t1"}})

	task := &models.Task{ID: "t1", Function: models.CustomFunction{Name: "x"}}

	result, err := New().Execute(context.Background(), task, ec.Fork("t1", slog.Default()))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.IsWaitingForInput())
}
