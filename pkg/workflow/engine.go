// Package workflow runs task workflows in rounds: every task whose
// predecessors are complete is dispatched concurrently, results are merged,
// and the loop repeats until nothing is ready.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/workflow/graph"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dukex/taskflow/pkg/workflow"

// HandlerRegistry resolves handlers by function type.
type HandlerRegistry interface {
	Lookup(functionType string) (protocol.Handler, bool)
}

type Engine struct {
	registry  HandlerRegistry
	logger    *slog.Logger
	tracer    trace.Tracer
	publisher eventbus.EventPublisher
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Engine)

// WithPublisher makes the engine publish lifecycle events. Publishing is
// best effort; failures are logged and never abort a run.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithClock overrides the time source used for audit timestamps and timings.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(registry HandlerRegistry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		logger:   logger.With("module", "workflow_engine"),
		tracer:   otelhelper.Tracer(tracerName),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RunOption configures a single execute call.
type RunOption func(*runOptions)

type runOptions struct {
	executionID string
}

// WithExecutionID sets the execution id instead of generating one.
func WithExecutionID(id string) RunOption {
	return func(o *runOptions) { o.executionID = id }
}

func buildRunOptions(opts []RunOption) runOptions {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.executionID == "" {
		o.executionID = uuid.NewString()
	}

	return o
}

// ExecuteWorkflow runs a tree workflow from its root tasks.
func (e *Engine) ExecuteWorkflow(ctx context.Context, wf *models.EngineWorkflow, opts ...RunOption) (*models.WorkflowResult, error) {
	o := buildRunOptions(opts)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute", e.workflowAttributes(wf.ID, wf.Name, o.executionID)...)
	defer span.End()

	r, err := e.newTreeRun(wf, o.executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.publish(ctx, o.executionID, events.NewWorkflowExecutionStarted(wf.ID, o.executionID, wf.Name, len(r.order)))

	return e.finish(ctx, span, r)
}

// ResumeWorkflowExecution replays a tree workflow with a larger completed
// set. Every task in inputs counts as completed and its value becomes that
// task's output; no handler is invoked for it.
func (e *Engine) ResumeWorkflowExecution(
	ctx context.Context,
	wf *models.EngineWorkflow,
	executionID string,
	completedTaskIDs []string,
	inputs map[string]any,
) (*models.WorkflowResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.resume", e.workflowAttributes(wf.ID, wf.Name, executionID)...)
	defer span.End()

	r, err := e.newTreeRun(wf, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.resume(ctx, r, completedTaskIDs, inputs)

	return e.finish(ctx, span, r)
}

// ExecuteGraph runs a flat workflow whose order comes from task dependencies.
func (e *Engine) ExecuteGraph(ctx context.Context, wf *models.FlatWorkflow, opts ...RunOption) (*models.WorkflowResult, error) {
	o := buildRunOptions(opts)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute_graph", e.workflowAttributes(wf.ID, wf.Name, o.executionID)...)
	defer span.End()

	r, err := e.newGraphRun(wf, o.executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.publish(ctx, o.executionID, events.NewWorkflowExecutionStarted(wf.ID, o.executionID, wf.Name, len(r.order)))

	return e.finish(ctx, span, r)
}

// ResumeGraphExecution is ResumeWorkflowExecution for flat workflows.
func (e *Engine) ResumeGraphExecution(
	ctx context.Context,
	wf *models.FlatWorkflow,
	executionID string,
	completedTaskIDs []string,
	inputs map[string]any,
) (*models.WorkflowResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.resume_graph", e.workflowAttributes(wf.ID, wf.Name, executionID)...)
	defer span.End()

	r, err := e.newGraphRun(wf, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.resume(ctx, r, completedTaskIDs, inputs)

	return e.finish(ctx, span, r)
}

func (e *Engine) newTreeRun(wf *models.EngineWorkflow, executionID string) (*run, error) {
	if err := e.validate.Struct(wf); err != nil {
		return nil, newValidationError("", fmt.Errorf("workflow %s: %w", wf.ID, err))
	}

	if err := wf.CheckTree(); err != nil {
		return nil, newValidationError("", err)
	}

	tasks := wf.AllTasks()
	if err := e.validateTasks(tasks); err != nil {
		return nil, err
	}

	var roots []*models.Task
	for _, task := range wf.Tasks {
		if task.IsRoot {
			roots = append(roots, task)
		}
	}

	r := e.newRun(wf.ID, wf.Name, executionID, tasks)
	r.ready = func() []*models.Task {
		return treeReady(roots, r.completed, r.waiting)
	}
	r.blocked = func(id string) []string {
		task, _ := r.byID(id)

		return treeDescendants(task)
	}

	return r, nil
}

func (e *Engine) newGraphRun(wf *models.FlatWorkflow, executionID string) (*run, error) {
	if err := e.validate.Struct(wf); err != nil {
		return nil, newValidationError("", fmt.Errorf("workflow %s: %w", wf.ID, err))
	}

	g, err := graph.New(wf.Tasks)
	if err != nil {
		return nil, newValidationError("", err)
	}

	r := e.newRun(wf.ID, wf.Name, executionID, wf.Tasks)
	r.ready = func() []*models.Task {
		return graphReady(g, r.completed, r.waiting)
	}
	r.blocked = g.Descendants

	return r, nil
}

// validateTasks rejects trees the scheduler cannot reason about: duplicate
// ids or a task that fails struct validation.
func (e *Engine) validateTasks(tasks []*models.Task) error {
	seen := make(map[string]struct{}, len(tasks))

	for _, task := range tasks {
		if err := e.validate.Struct(task); err != nil {
			return newValidationError(task.ID, err)
		}

		if _, ok := seen[task.ID]; ok {
			return newValidationError(task.ID, fmt.Errorf("duplicate task id %s", task.ID))
		}

		seen[task.ID] = struct{}{}
	}

	return nil
}

func (e *Engine) resume(ctx context.Context, r *run, completedTaskIDs []string, inputs map[string]any) {
	completed := make([]string, 0, len(completedTaskIDs))
	for _, id := range completedTaskIDs {
		if _, ok := r.byID(id); !ok {
			r.logger.WarnContext(ctx, "Ignoring unknown completed task", "task_id", id)

			continue
		}

		r.completed[id] = struct{}{}
		completed = append(completed, id)
	}

	provided := make([]string, 0, len(inputs))
	for _, task := range r.order {
		value, ok := inputs[task.ID]
		if !ok {
			continue
		}

		r.completed[task.ID] = struct{}{}
		r.ec.SetOutput(task.ID, value)
		r.ec.AppendLog(task.ID, fmt.Sprintf("Received user input: %v", value))
		provided = append(provided, task.ID)
	}

	for id := range inputs {
		if _, ok := r.byID(id); !ok {
			r.logger.WarnContext(ctx, "Ignoring input for unknown task", "task_id", id)
		}
	}

	r.logger.InfoContext(ctx, "Resuming workflow execution",
		"completed_count", len(completed),
		"input_count", len(provided),
	)

	e.publish(ctx, r.ec.ExecutionID(), events.NewWorkflowExecutionResumed(r.ec.WorkflowID(), r.ec.ExecutionID(), completed, provided))
}

// finish runs the round loop and assembles the result.
func (e *Engine) finish(ctx context.Context, span trace.Span, r *run) (*models.WorkflowResult, error) {
	started := e.now()

	if err := e.loop(ctx, r); err != nil {
		otelhelper.SetError(span, err)
		r.logger.ErrorContext(ctx, "Workflow execution aborted", "error", err)

		return nil, err
	}

	result := r.result()
	duration := e.now().Sub(started)

	span.SetAttributes(
		attribute.Bool("taskflow.workflow.success", result.Success),
		attribute.Int("taskflow.workflow.error_count", len(result.Errors)),
	)

	executionID := r.ec.ExecutionID()
	workflowID := r.ec.WorkflowID()

	switch waiting := result.WaitingTaskIDs(); {
	case len(waiting) > 0:
		r.logger.InfoContext(ctx, "Workflow paused waiting for input", "waiting", waiting)
		e.publish(ctx, executionID, events.NewWorkflowExecutionPaused(workflowID, executionID, waiting))
	case result.Success:
		r.logger.InfoContext(ctx, "Workflow completed", "duration", duration)
		e.publish(ctx, executionID, events.NewWorkflowExecutionCompleted(workflowID, executionID, result.Tasks, duration))
	default:
		r.logger.WarnContext(ctx, "Workflow completed with failures", "errors", len(result.Errors), "duration", duration)
		e.publish(ctx, executionID, events.NewWorkflowExecutionFailed(workflowID, executionID, result.Errors, duration))
	}

	return result, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"execution_id", key,
			"error", err,
		)
	}
}

func (e *Engine) workflowAttributes(workflowID, name, executionID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.WorkflowNameKey, name),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	}
}
