package log

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
	tests := []struct {
		name        string
		input       map[string]any
		wantSuccess bool
		wantMessage string
	}{
		{
			name:        "plain message",
			input:       map[string]any{"message": "hello"},
			wantSuccess: true,
			wantMessage: "hello",
		},
		{
			name:        "templated message",
			input:       map[string]any{"message": "built {{ .tasks.build.version }}", "level": "warn"},
			wantSuccess: true,
			wantMessage: "built 1.0",
		},
		{
			name:        "invalid level",
			input:       map[string]any{"message": "x", "level": "loud"},
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := workflow.NewExecutionContext("w1", "exec-1", []*models.Task{{ID: "build"}, {ID: "log"}})
			ec.SetOutput("build", map[string]any{"version": "1.0"})
			tc := ec.Fork("log", slog.Default())

			task := &models.Task{ID: "log", Function: models.CustomFunction{Name: FunctionType, Input: tt.input}}

			result, err := New().Execute(context.Background(), task, tc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)

			if tt.wantSuccess {
				assert.Equal(t, map[string]any{"message": tt.wantMessage}, result.Output)
				assert.Equal(t, []string{tt.wantMessage}, tc.Lines())
			}
		})
	}
}
