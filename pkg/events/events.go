// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event.
const Topic = "taskflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow execution lifecycle events.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionResumedEvent   EventType = "workflow.execution.resumed"
	WorkflowExecutionPausedEvent    EventType = "workflow.execution.paused"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"

	// Task outcome events.
	TaskCompletedEvent       EventType = "task.completed"
	TaskFailedEvent          EventType = "task.failed"
	TaskWaitingForInputEvent EventType = "task.waiting_for_input"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func newBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

type WorkflowExecutionStarted struct {
	BaseEvent

	WorkflowName string `json:"workflow_name"`
	TaskCount    int    `json:"task_count"`
}

func NewWorkflowExecutionStarted(workflowID, executionID, name string, taskCount int) *WorkflowExecutionStarted {
	return &WorkflowExecutionStarted{
		BaseEvent:    newBaseEvent(WorkflowExecutionStartedEvent, workflowID, executionID),
		WorkflowName: name,
		TaskCount:    taskCount,
	}
}

func (e WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionResumed struct {
	BaseEvent

	CompletedTaskIDs []string `json:"completed_task_ids"`
	InputTaskIDs     []string `json:"input_task_ids"`
}

func NewWorkflowExecutionResumed(workflowID, executionID string, completed, inputs []string) *WorkflowExecutionResumed {
	return &WorkflowExecutionResumed{
		BaseEvent:        newBaseEvent(WorkflowExecutionResumedEvent, workflowID, executionID),
		CompletedTaskIDs: completed,
		InputTaskIDs:     inputs,
	}
}

func (e WorkflowExecutionResumed) GetType() EventType {
	return WorkflowExecutionResumedEvent
}

type WorkflowExecutionPaused struct {
	BaseEvent

	WaitingTaskIDs []string `json:"waiting_task_ids"`
}

func NewWorkflowExecutionPaused(workflowID, executionID string, waiting []string) *WorkflowExecutionPaused {
	return &WorkflowExecutionPaused{
		BaseEvent:      newBaseEvent(WorkflowExecutionPausedEvent, workflowID, executionID),
		WaitingTaskIDs: waiting,
	}
}

func (e WorkflowExecutionPaused) GetType() EventType {
	return WorkflowExecutionPausedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	Tasks    []models.TaskInfo `json:"tasks"`
	Duration time.Duration     `json:"duration"`
}

func NewWorkflowExecutionCompleted(workflowID, executionID string, tasks []models.TaskInfo, duration time.Duration) *WorkflowExecutionCompleted {
	return &WorkflowExecutionCompleted{
		BaseEvent: newBaseEvent(WorkflowExecutionCompletedEvent, workflowID, executionID),
		Tasks:     tasks,
		Duration:  duration,
	}
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	Errors   []string      `json:"errors"`
	Duration time.Duration `json:"duration"`
}

func NewWorkflowExecutionFailed(workflowID, executionID string, errs []string, duration time.Duration) *WorkflowExecutionFailed {
	return &WorkflowExecutionFailed{
		BaseEvent: newBaseEvent(WorkflowExecutionFailedEvent, workflowID, executionID),
		Errors:    errs,
		Duration:  duration,
	}
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// TaskOutcome is shared by the three task events.
type TaskOutcome struct {
	BaseEvent

	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
	Round    int    `json:"round"`
	Message  string `json:"message,omitempty"`
}

type TaskCompleted struct{ TaskOutcome }

func (e TaskCompleted) GetType() EventType { return TaskCompletedEvent }

type TaskFailed struct{ TaskOutcome }

func (e TaskFailed) GetType() EventType { return TaskFailedEvent }

type TaskWaitingForInput struct{ TaskOutcome }

func (e TaskWaitingForInput) GetType() EventType { return TaskWaitingForInputEvent }

func newTaskOutcome(eventType EventType, workflowID, executionID string, task *models.Task, round int, message string) TaskOutcome {
	return TaskOutcome{
		BaseEvent: newBaseEvent(eventType, workflowID, executionID),
		TaskID:    task.ID,
		TaskName:  task.DisplayName(),
		Round:     round,
		Message:   message,
	}
}

func NewTaskCompleted(workflowID, executionID string, task *models.Task, round int) *TaskCompleted {
	return &TaskCompleted{newTaskOutcome(TaskCompletedEvent, workflowID, executionID, task, round, "")}
}

func NewTaskFailed(workflowID, executionID string, task *models.Task, round int, message string) *TaskFailed {
	return &TaskFailed{newTaskOutcome(TaskFailedEvent, workflowID, executionID, task, round, message)}
}

func NewTaskWaitingForInput(workflowID, executionID string, task *models.Task, round int) *TaskWaitingForInput {
	return &TaskWaitingForInput{newTaskOutcome(TaskWaitingForInputEvent, workflowID, executionID, task, round, "")}
}
