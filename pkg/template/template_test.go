package template

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTaskContext struct {
	outputs map[string]any
}

func (s stubTaskContext) WorkflowID() string { return "w1" }
func (s stubTaskContext) ExecutionID() string { return "exec-1" }
func (s stubTaskContext) TaskID() string { return "t2" }

func (s stubTaskContext) Output(taskID string) (any, bool) {
	v, ok := s.outputs[taskID]

	return v, ok
}

func (s stubTaskContext) Outputs() map[string]any { return s.outputs }
func (s stubTaskContext) Log(string, ...any) {}
func (s stubTaskContext) Logger() *slog.Logger { return slog.Default() }

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	result, err = Render("{{ .isNew }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Numbers always decode as float64.
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_ObjectConstruction(t *testing.T) {
	data := map[string]any{
		"user":   map[string]any{"name": "Alice"},
		"orders": []any{1, 2},
	}

	result, err := Render(`{
		"user_name": "{{ .user.name }}",
		"total_orders": {{ len .orders }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", resultMap["user_name"])
	assert.Equal(t, 2.0, resultMap["total_orders"])
}

func TestRender_ErrorHandling(t *testing.T) {
	_, err := Render("{ invalid..expression }}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")

	_, err = Render("{{ nonexistent.field }}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestRenderString_PlainTextIsUntouched(t *testing.T) {
	result, err := RenderString("--verbose", nil)
	require.NoError(t, err)
	assert.Equal(t, "--verbose", result)
}

func TestRenderWithContext(t *testing.T) {
	t.Setenv("TASKFLOW_TEMPLATE_TEST", "on")

	tc := stubTaskContext{outputs: map[string]any{
		"build": map[string]any{"stdout": "v1.2.3\n", "exit_code": 0},
	}}

	result, err := RenderWithContext(`release-{{ trim .tasks.build.stdout }}`, tc)
	require.Error(t, err, "trim is not a template function")
	assert.Nil(t, result)

	result, err = RenderWithContext(`{{ .execution.id }}/{{ .execution.task_id }}`, tc)
	require.NoError(t, err)
	assert.Equal(t, "exec-1/t2", result)

	result, err = RenderWithContext(`{{ .env.TASKFLOW_TEMPLATE_TEST }}`, tc)
	require.NoError(t, err)
	assert.Equal(t, "on", result)

	result, err = RenderWithContext(`{{ json .tasks.build.exit_code }}`, tc)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result)
}
