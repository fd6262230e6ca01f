package workflow

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
)

// ExecutionContext is the mutable state of one execute or resume call. It is
// only written between rounds, so handlers never wait on its lock.
type ExecutionContext struct {
	mu sync.RWMutex

	workflowID  string
	executionID string

	tasks       map[string]*models.Task
	logs        map[string][]string
	outputs     map[string]any
	startedAt   map[string]time.Time
	completedAt map[string]time.Time
}

// NewExecutionContext copies tasks into a private registry used for status
// bookkeeping. The caller's tasks are never mutated.
func NewExecutionContext(workflowID, executionID string, tasks []*models.Task) *ExecutionContext {
	registry := make(map[string]*models.Task, len(tasks))
	for _, task := range tasks {
		copied := *task
		copied.Status = ""
		registry[task.ID] = &copied
	}

	return &ExecutionContext{
		workflowID:  workflowID,
		executionID: executionID,
		tasks:       registry,
		logs:        make(map[string][]string),
		outputs:     make(map[string]any),
		startedAt:   make(map[string]time.Time),
		completedAt: make(map[string]time.Time),
	}
}

func (c *ExecutionContext) WorkflowID() string {
	return c.workflowID
}

func (c *ExecutionContext) ExecutionID() string {
	return c.executionID
}

// Task returns the context's copy of a task.
func (c *ExecutionContext) Task(id string) (*models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	task, ok := c.tasks[id]

	return task, ok
}

func (c *ExecutionContext) SetStatus(id string, status models.TaskStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task, ok := c.tasks[id]; ok {
		task.Status = status
	}
}

// Status returns the recorded status of a task; ok is false when none was set.
func (c *ExecutionContext) Status(id string) (models.TaskStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	task, ok := c.tasks[id]
	if !ok || task.Status == "" {
		return "", false
	}

	return task.Status, true
}

func (c *ExecutionContext) AppendLog(id, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs[id] = append(c.logs[id], line)
}

// Logs returns a copy of the log lines of one task.
func (c *ExecutionContext) Logs(id string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.logs[id]...)
}

// AllLogs returns a copy of every task's log lines.
func (c *ExecutionContext) AllLogs() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs := make(map[string][]string, len(c.logs))
	for id, lines := range c.logs {
		logs[id] = append([]string(nil), lines...)
	}

	return logs
}

func (c *ExecutionContext) SetOutput(id string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outputs[id] = output
}

func (c *ExecutionContext) Output(id string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	output, ok := c.outputs[id]

	return output, ok
}

func (c *ExecutionContext) markStarted(id string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startedAt[id] = at
}

func (c *ExecutionContext) markCompleted(id string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completedAt[id] = at
}

// Timings returns when a task was dispatched and when its handler returned.
func (c *ExecutionContext) Timings(id string) (*time.Time, *time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var started, completed *time.Time
	if t, ok := c.startedAt[id]; ok {
		started = &t
	}

	if t, ok := c.completedAt[id]; ok {
		completed = &t
	}

	return started, completed
}

// Fork returns a private handle for one dispatched task. The handle sees a
// snapshot of the outputs recorded so far and buffers its own log lines.
func (c *ExecutionContext) Fork(taskID string, logger *slog.Logger) *TaskContext {
	c.mu.RLock()
	outputs := maps.Clone(c.outputs)
	c.mu.RUnlock()

	return &TaskContext{
		workflowID:  c.workflowID,
		executionID: c.executionID,
		taskID:      taskID,
		outputs:     outputs,
		logger:      logger.With("task_id", taskID),
	}
}

// Merge appends the handle's buffered log lines to the shared log. It must
// only be called once the round's dispatch set has resolved.
func (c *ExecutionContext) Merge(tc *TaskContext) {
	if len(tc.logs) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs[tc.taskID] = append(c.logs[tc.taskID], tc.logs...)
}

// TaskContext is owned by a single handler invocation and is not safe for
// use from several goroutines.
type TaskContext struct {
	workflowID  string
	executionID string
	taskID      string
	outputs     map[string]any
	logs        []string
	logger      *slog.Logger
}

var _ protocol.TaskContext = (*TaskContext)(nil)

func (tc *TaskContext) WorkflowID() string {
	return tc.workflowID
}

func (tc *TaskContext) ExecutionID() string {
	return tc.executionID
}

func (tc *TaskContext) TaskID() string {
	return tc.taskID
}

func (tc *TaskContext) Output(taskID string) (any, bool) {
	output, ok := tc.outputs[taskID]

	return output, ok
}

func (tc *TaskContext) Outputs() map[string]any {
	return maps.Clone(tc.outputs)
}

// Log appends a line to the task's log.
func (tc *TaskContext) Log(format string, args ...any) {
	tc.logs = append(tc.logs, fmt.Sprintf(format, args...))
}

func (tc *TaskContext) Logger() *slog.Logger {
	return tc.logger
}

// Lines returns the lines buffered so far.
func (tc *TaskContext) Lines() []string {
	return append([]string(nil), tc.logs...)
}
