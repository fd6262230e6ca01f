// Package template renders text/template strings against task outputs.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/taskflow/pkg/protocol"
)

// Data builds the template data of a task: predecessor outputs under
// "tasks", the run identifiers under "execution" and the environment under "env".
func Data(tc protocol.TaskContext) map[string]any {
	return map[string]any{
		"tasks": tc.Outputs(),
		"env":   envVars(),
		"execution": map[string]any{
			"id":          tc.ExecutionID(),
			"workflow_id": tc.WorkflowID(),
			"task_id":     tc.TaskID(),
		},
	}
}

// RenderWithContext is Render over Data(tc).
func RenderWithContext(input string, tc protocol.TaskContext) (any, error) {
	return Render(input, Data(tc))
}

// RenderString renders a template and returns the raw text.
func RenderString(templateStr string, data any) (string, error) {
	if !strings.Contains(templateStr, "{{") {
		return templateStr, nil
	}

	tmpl, err := template.
		New("task").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"json": func(v any) (string, error) {
				b, err := json.Marshal(v)

				return string(b), err
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// Render renders a template and decodes the result as JSON, a number or a
// boolean when it looks like one, falling back to the string.
func Render(templateStr string, data any) (any, error) {
	rendered, err := RenderString(templateStr, data)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(rendered)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok {
			envMap[key] = value
		}
	}

	return envMap
}
