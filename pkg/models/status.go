package models

// TaskStatus is the shared status vocabulary for tasks and the persisted
// task execution records. Pending → InProgress → {Complete | Failed |
// WaitingForInput}; WaitingForInput → InProgress on resume.
type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "pending"
	TaskStatusInProgress      TaskStatus = "in_progress"
	TaskStatusComplete        TaskStatus = "complete"
	TaskStatusFailed          TaskStatus = "failed"
	TaskStatusWaitingForInput TaskStatus = "waiting_for_input"
)

// WorkflowStatus represents the aggregate lifecycle state of a workflow run.
type WorkflowStatus string

const (
	WorkflowStatusPending         WorkflowStatus = "pending"
	WorkflowStatusRunning         WorkflowStatus = "running"
	WorkflowStatusWaitingForInput WorkflowStatus = "waiting_for_input"
	WorkflowStatusComplete        WorkflowStatus = "complete"
	WorkflowStatusFailed          WorkflowStatus = "failed"
)

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// AggregateStatus derives a workflow status from its task statuses. A
// workflow is WaitingForInput iff at least one task is; otherwise it is
// Failed when the run reported errors and Complete when it did not.
func AggregateStatus(tasks []TaskInfo, success bool) WorkflowStatus {
	for _, task := range tasks {
		if task.Status == TaskStatusWaitingForInput {
			return WorkflowStatusWaitingForInput
		}
	}

	if !success {
		return WorkflowStatusFailed
	}

	return WorkflowStatusComplete
}
