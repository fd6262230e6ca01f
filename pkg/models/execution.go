package models

import "time"

// WorkflowMetadata is the "is it still running or paused" view of a run.
type WorkflowMetadata struct {
	ID             string         `json:"id"                       validate:"required"`
	WorkflowName   string         `json:"workflow_name"            validate:"required"`
	StartTimestamp time.Time      `json:"start_timestamp"`
	EndTimestamp   *time.Time     `json:"end_timestamp,omitempty"`
	Status         WorkflowStatus `json:"status"                   validate:"required"`
	TaskIDs        []string       `json:"task_ids"`
	IsPaused       bool           `json:"is_paused"`
	PausedTaskID   *string        `json:"paused_task_id,omitempty"`
}

// TaskExecution is the persisted state of one task within one run.
type TaskExecution struct {
	ExecutionID    string     `json:"execution_id"    validate:"required"`
	TaskID         string     `json:"task_id"         validate:"required"`
	TaskName       string     `json:"task_name"`
	Status         TaskStatus `json:"status"          validate:"required"`
	Logs           []string   `json:"logs"`
	StartTimestamp time.Time  `json:"start_timestamp"`
	EndTimestamp   time.Time  `json:"end_timestamp"`
}

// WorkflowExecution is the full-history view of a run.
type WorkflowExecution struct {
	ID           string              `json:"id"            validate:"required"`
	WorkflowName string              `json:"workflow_name"`
	Timestamp    time.Time           `json:"timestamp"`
	Success      bool                `json:"success"`
	Tasks        []TaskInfo          `json:"tasks"`
	AuditTrail   []AuditEntry        `json:"audit_trail"`
	PerTaskLogs  map[string][]string `json:"per_task_logs"`
	Errors       []string            `json:"errors"`
}

// NewWorkflowExecution captures a WorkflowResult under an execution id.
func NewWorkflowExecution(id string, timestamp time.Time, result *WorkflowResult) *WorkflowExecution {
	return &WorkflowExecution{
		ID:           id,
		WorkflowName: result.WorkflowName,
		Timestamp:    timestamp,
		Success:      result.Success,
		Tasks:        result.Tasks,
		AuditTrail:   result.AuditTrail,
		PerTaskLogs:  result.PerTaskLogs,
		Errors:       result.Errors,
	}
}

// WorkflowWithTasks joins metadata with its task execution records, ordered
// by metadata.TaskIDs.
type WorkflowWithTasks struct {
	Metadata *WorkflowMetadata `json:"metadata"`
	Tasks    []*TaskExecution  `json:"tasks"`
}

// Setting is a single key/value configuration record.
type Setting struct {
	Key       string    `json:"key"        validate:"required"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
