package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/workflow/graph"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const changesCountKey = "changes_count"

// run is the scheduler state of one call.
type run struct {
	engine *Engine
	logger *slog.Logger
	ec     *ExecutionContext

	name  string
	order []*models.Task
	index map[string]*models.Task

	completed map[string]struct{}
	waiting   map[string]struct{}

	audit  []models.AuditEntry
	errors []string

	// ready lists the tasks to dispatch next, in a stable order.
	ready func() []*models.Task
	// blocked lists the tasks held back by a waiting task.
	blocked func(id string) []string
}

func (e *Engine) newRun(workflowID, name, executionID string, tasks []*models.Task) *run {
	index := make(map[string]*models.Task, len(tasks))
	for _, task := range tasks {
		index[task.ID] = task
	}

	return &run{
		engine: e,
		logger: e.logger.With(
			"workflow_id", workflowID,
			"execution_id", executionID,
		),
		ec:        NewExecutionContext(workflowID, executionID, tasks),
		name:      name,
		order:     tasks,
		index:     index,
		completed: make(map[string]struct{}),
		waiting:   make(map[string]struct{}),
	}
}

func (r *run) byID(id string) (*models.Task, bool) {
	task, ok := r.index[id]

	return task, ok
}

// slot is the private result arena of one dispatched task.
type slot struct {
	task        *models.Task
	tc          *TaskContext
	result      models.TaskResult
	err         error
	startedAt   time.Time
	completedAt time.Time
}

// loop runs rounds until no task is ready. Every round either completes or
// parks each dispatched task, so the ready set strictly shrinks.
func (e *Engine) loop(ctx context.Context, r *run) error {
	for round := 1; ; round++ {
		ready := r.ready()
		if len(ready) == 0 {
			return nil
		}

		if err := e.round(ctx, r, round, ready); err != nil {
			return err
		}
	}
}

func (e *Engine) round(ctx context.Context, r *run, round int, ready []*models.Task) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.round",
		attribute.Int(otelhelper.RoundKey, round),
		attribute.Int(otelhelper.ReadyCountKey, len(ready)),
	)
	defer span.End()

	logger := r.logger.With("round", round)
	logger.DebugContext(ctx, "Dispatching round", "ready", taskIDs(ready))

	slots := make([]*slot, len(ready))
	for i, task := range ready {
		slots[i] = &slot{task: task, tc: r.ec.Fork(task.ID, logger)}
	}

	var g errgroup.Group
	for _, s := range slots {
		g.Go(func() error {
			return e.dispatch(ctx, s)
		})
	}

	// A panic is fatal for the whole call; the remaining results are dropped.
	if err := g.Wait(); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	for _, s := range slots {
		r.ec.Merge(s.tc)
		r.ec.markStarted(s.task.ID, s.startedAt)
		r.ec.markCompleted(s.task.ID, s.completedAt)
		e.apply(ctx, r, round, s, logger)
	}

	return nil
}

// dispatch runs one handler, converting a panic into an EngineError.
func (e *Engine) dispatch(ctx context.Context, s *slot) (err error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.task",
		attribute.String(otelhelper.TaskIDKey, s.task.ID),
		attribute.String(otelhelper.TaskNameKey, s.task.DisplayName()),
		attribute.String(otelhelper.FunctionTypeKey, s.task.FunctionType()),
	)
	defer span.End()

	s.startedAt = e.now()

	defer func() {
		s.completedAt = e.now()

		if recovered := recover(); recovered != nil {
			err = newPanicError(s.task.ID, recovered)
			otelhelper.SetError(span, err)
		}
	}()

	handler, ok := e.registry.Lookup(s.task.FunctionType())
	if !ok {
		s.result = models.FailureResult(fmt.Sprintf("No handler found for function type: %s", s.task.FunctionType()))

		return nil
	}

	s.result, s.err = handler.Execute(ctx, s.task, s.tc)
	if s.err != nil {
		otelhelper.SetError(span, s.err)
	} else if !s.result.Success {
		span.SetAttributes(attribute.String("taskflow.task.error", s.result.Error))
	}

	return nil
}

// apply folds one task's outcome into the run state.
func (e *Engine) apply(ctx context.Context, r *run, round int, s *slot, logger *slog.Logger) {
	task := s.task
	executionID := r.ec.ExecutionID()
	workflowID := r.ec.WorkflowID()
	timestamp := s.completedAt.UTC().Format(time.RFC3339)

	switch {
	case s.err == nil && s.result.IsWaitingForInput():
		r.waiting[task.ID] = struct{}{}
		r.ec.SetStatus(task.ID, models.TaskStatusWaitingForInput)
		logger.InfoContext(ctx, "Task waiting for input", "task_id", task.ID)
		e.publish(ctx, executionID, events.NewTaskWaitingForInput(workflowID, executionID, task, round))

	case s.err == nil && s.result.Success:
		r.completed[task.ID] = struct{}{}
		r.ec.SetStatus(task.ID, models.TaskStatusComplete)
		r.ec.SetOutput(task.ID, s.result.Output)
		r.audit = append(r.audit, models.AuditEntry{
			TaskID:       task.ID,
			Status:       models.AuditStatusSuccess,
			Timestamp:    timestamp,
			ChangesCount: changesCount(s.result.Output),
			Message:      fmt.Sprintf("Task %s completed successfully", task.DisplayName()),
		})
		logger.InfoContext(ctx, "Task completed", "task_id", task.ID)
		e.publish(ctx, executionID, events.NewTaskCompleted(workflowID, executionID, task, round))

	default:
		message := s.result.Error
		if s.err != nil {
			message = s.err.Error()
		}

		if message == "" {
			message = "task reported failure"
		}

		// Marked completed so independent branches keep making progress.
		r.completed[task.ID] = struct{}{}
		r.ec.SetStatus(task.ID, models.TaskStatusFailed)
		r.audit = append(r.audit, models.AuditEntry{
			TaskID:    task.ID,
			Status:    models.AuditStatusFailure,
			Timestamp: timestamp,
			Message:   message,
		})
		r.errors = append(r.errors, fmt.Sprintf("Task %s failed: %s", task.ID, message))
		logger.WarnContext(ctx, "Task failed", "task_id", task.ID, "error", message)
		e.publish(ctx, executionID, events.NewTaskFailed(workflowID, executionID, task, round, message))
	}
}

// result resolves every task's status: Complete, then WaitingForInput, then
// whatever the context recorded, then Failed for tasks never scheduled.
func (r *run) result() *models.WorkflowResult {
	for id := range r.waiting {
		for _, blocked := range r.blocked(id) {
			if _, done := r.completed[blocked]; done {
				continue
			}

			if _, parked := r.waiting[blocked]; parked {
				continue
			}

			if _, recorded := r.ec.Status(blocked); !recorded {
				r.ec.SetStatus(blocked, models.TaskStatusPending)
			}
		}
	}

	tasks := make([]models.TaskInfo, 0, len(r.order))
	for _, task := range r.order {
		info := models.TaskInfo{ID: task.ID, Name: task.DisplayName()}
		info.StartedAt, info.CompletedAt = r.ec.Timings(task.ID)

		if _, ok := r.completed[task.ID]; ok {
			info.Status = models.TaskStatusComplete
		} else if _, ok := r.waiting[task.ID]; ok {
			info.Status = models.TaskStatusWaitingForInput
		} else if status, ok := r.ec.Status(task.ID); ok {
			info.Status = status
		} else {
			info.Status = models.TaskStatusFailed
		}

		tasks = append(tasks, info)
	}

	errs := r.errors
	if errs == nil {
		errs = []string{}
	}

	audit := r.audit
	if audit == nil {
		audit = []models.AuditEntry{}
	}

	return &models.WorkflowResult{
		Success:      len(r.errors) == 0,
		WorkflowName: r.name,
		Tasks:        tasks,
		AuditTrail:   audit,
		PerTaskLogs:  r.ec.AllLogs(),
		Errors:       errs,
	}
}

// treeReady walks from the roots. Completed tasks are transparent, waiting
// tasks hide their whole subtree.
func treeReady(roots []*models.Task, completed, waiting map[string]struct{}) []*models.Task {
	var (
		ready []*models.Task
		visit func(task *models.Task)
	)

	visit = func(task *models.Task) {
		if task == nil {
			return
		}

		if _, ok := waiting[task.ID]; ok {
			return
		}

		if _, ok := completed[task.ID]; ok {
			for _, child := range task.NextTasks {
				visit(child)
			}

			return
		}

		ready = append(ready, task)
	}

	for _, root := range roots {
		visit(root)
	}

	return ready
}

func treeDescendants(task *models.Task) []string {
	if task == nil {
		return nil
	}

	var ids []string
	for _, child := range task.NextTasks {
		if child != nil {
			child.Walk(func(t *models.Task) { ids = append(ids, t.ID) })
		}
	}

	return ids
}

func graphReady(g *graph.DependencyGraph, completed, waiting map[string]struct{}) []*models.Task {
	candidates := g.GetReadyTasks(completed)

	ready := candidates[:0:0]
	for _, task := range candidates {
		if _, ok := waiting[task.ID]; !ok {
			ready = append(ready, task)
		}
	}

	return ready
}

func changesCount(output any) int {
	fields, ok := output.(map[string]any)
	if !ok {
		return 0
	}

	switch n := fields[changesCountKey].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func taskIDs(tasks []*models.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}

	return ids
}
