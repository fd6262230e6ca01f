package models

import "time"

// WaitingForInputKey is the reserved output field that marks a suspended task.
const WaitingForInputKey = "waiting_for_input"

// TaskResult is what a handler returns. A result whose output carries
// waiting_for_input=true is a suspension, not a completion, regardless of
// Success.
type TaskResult struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IsWaitingForInput reports whether the output signals a pending input.
func (r TaskResult) IsWaitingForInput() bool {
	output, ok := r.Output.(map[string]any)
	if !ok {
		return false
	}

	waiting, ok := output[WaitingForInputKey].(bool)

	return ok && waiting
}

// SuccessResult builds a successful result.
func SuccessResult(output any) TaskResult {
	return TaskResult{Success: true, Output: output}
}

// FailureResult builds a failed result with the given message.
func FailureResult(message string) TaskResult {
	return TaskResult{Success: false, Error: message}
}

// WaitingForInputResult builds a suspension result; extra fields are merged
// into the output alongside the reserved flag.
func WaitingForInputResult(fields map[string]any) TaskResult {
	output := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		output[k] = v
	}
	output[WaitingForInputKey] = true

	return TaskResult{Success: true, Output: output}
}

// TaskInfo is a task's resolved status at the end of a run.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      TaskStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AuditEntry records one task outcome. Timestamp is RFC3339.
type AuditEntry struct {
	TaskID       string      `json:"task_id"`
	Status       AuditStatus `json:"status"`
	Timestamp    string      `json:"timestamp"`
	ChangesCount int         `json:"changes_count"`
	Message      string      `json:"message"`
}

// WorkflowResult is the outcome of one execute or resume call.
type WorkflowResult struct {
	Success      bool                `json:"success"`
	WorkflowName string              `json:"workflow_name"`
	Tasks        []TaskInfo          `json:"tasks"`
	AuditTrail   []AuditEntry        `json:"audit_trail"`
	PerTaskLogs  map[string][]string `json:"per_task_logs"`
	Errors       []string            `json:"errors"`
}

// TaskStatusByID returns the resolved status of a task, or "" if absent.
func (r *WorkflowResult) TaskStatusByID(id string) TaskStatus {
	for _, task := range r.Tasks {
		if task.ID == id {
			return task.Status
		}
	}

	return ""
}

// WaitingTaskIDs lists the tasks currently blocked on input.
func (r *WorkflowResult) WaitingTaskIDs() []string {
	var ids []string
	for _, task := range r.Tasks {
		if task.Status == TaskStatusWaitingForInput {
			ids = append(ids, task.ID)
		}
	}

	return ids
}
