package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/mocks"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/registry"
	"github.com/dukex/taskflow/pkg/workflow/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	okType    = "ok"
	failType  = "fail"
	errType   = "error"
	panicType = "panic"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testRegistry() *registry.Registry {
	r := registry.NewRegistry(testLogger())

	r.RegisterFunc(okType, func(_ context.Context, task *models.Task, tc protocol.TaskContext) (models.TaskResult, error) {
		tc.Log("running %s", task.ID)

		return models.SuccessResult(map[string]any{"task": task.ID, "changes_count": 2}), nil
	})
	r.RegisterFunc(failType, func(context.Context, *models.Task, protocol.TaskContext) (models.TaskResult, error) {
		return models.FailureResult("exit status 1"), nil
	})
	r.RegisterFunc(errType, func(context.Context, *models.Task, protocol.TaskContext) (models.TaskResult, error) {
		return models.TaskResult{}, errors.New("connection refused")
	})
	r.RegisterFunc(panicType, func(context.Context, *models.Task, protocol.TaskContext) (models.TaskResult, error) {
		panic("handler bug")
	})
	r.RegisterFunc(models.FunctionTypeUserInput, func(_ context.Context, task *models.Task, _ protocol.TaskContext) (models.TaskResult, error) {
		prompt := task.Function.(models.UserInputPrompt)

		return models.WaitingForInputResult(map[string]any{"prompt": prompt.Prompt}), nil
	})

	return r
}

func task(id, functionType string, next ...*models.Task) *models.Task {
	return &models.Task{
		ID:        id,
		Name:      id,
		Function:  models.CustomFunction{Name: functionType},
		NextTasks: next,
	}
}

func root(t *models.Task) *models.Task {
	t.IsRoot = true

	return t
}

func inputTask(id string, next ...*models.Task) *models.Task {
	return &models.Task{
		ID:        id,
		Name:      id,
		Function:  models.UserInputPrompt{Prompt: "Approve?"},
		NextTasks: next,
	}
}

func statusOf(t *testing.T, result *models.WorkflowResult, id string) models.TaskStatus {
	t.Helper()

	status := result.TaskStatusByID(id)
	require.NotEmpty(t, status, "task %s missing from result", id)

	return status
}

func auditFor(result *models.WorkflowResult, id string) []models.AuditEntry {
	var entries []models.AuditEntry
	for _, entry := range result.AuditTrail {
		if entry.TaskID == id {
			entries = append(entries, entry)
		}
	}

	return entries
}

func TestEngine_ExecuteWorkflow_AllSucceed(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:   "w1",
		Name: "build",
		Tasks: []*models.Task{
			root(task("t1", okType, task("t2", okType), task("t3", okType, task("t5", okType)))),
			root(task("t4", okType)),
		},
	}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "build", result.WorkflowName)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Tasks, 5)

	for _, info := range result.Tasks {
		assert.Equal(t, models.TaskStatusComplete, info.Status, info.ID)
		assert.NotNil(t, info.StartedAt, info.ID)
		assert.NotNil(t, info.CompletedAt, info.ID)

		entries := auditFor(result, info.ID)
		require.Len(t, entries, 1, info.ID)
		assert.Equal(t, models.AuditStatusSuccess, entries[0].Status)
		assert.Equal(t, 2, entries[0].ChangesCount)

		_, err := time.Parse(time.RFC3339, entries[0].Timestamp)
		assert.NoError(t, err)
	}

	assert.Equal(t, []string{"running t1"}, result.PerTaskLogs["t1"])
}

func TestEngine_ExecuteWorkflow_MissingHandlerIsNonFatal(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:   "w1",
		Name: "partial",
		Tasks: []*models.Task{
			root(task("a", "unknown", task("a-child", okType))),
			root(task("b", okType)),
		},
	}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "No handler found")

	entries := auditFor(result, "a")
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditStatusFailure, entries[0].Status)
	assert.Contains(t, entries[0].Message, "No handler found for function type: unknown")

	assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "b"))
	// The failed task still counts as completed, so its subtree runs.
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "a"))
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "a-child"))
}

func TestEngine_ExecuteWorkflow_FailuresAreRecorded(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:   "w1",
		Name: "failures",
		Tasks: []*models.Task{
			root(task("fails", failType)),
			root(task("errors", errType)),
		},
	}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.ElementsMatch(t, []string{
		"Task fails failed: exit status 1",
		"Task errors failed: connection refused",
	}, result.Errors)
	assert.Len(t, result.AuditTrail, 2)
}

func TestEngine_ExecuteWorkflow_AuditFollowsReadyOrder(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:   "w1",
		Name: "ordered",
		Tasks: []*models.Task{
			root(task("c", okType)),
			root(task("a", okType)),
			root(task("b", okType)),
		},
	}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	require.Len(t, result.AuditTrail, 3)
	assert.Equal(t, "c", result.AuditTrail[0].TaskID)
	assert.Equal(t, "a", result.AuditTrail[1].TaskID)
	assert.Equal(t, "b", result.AuditTrail[2].TaskID)
}

func TestEngine_ExecuteWorkflow_NonRootTopLevelTaskNeverRuns(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:    "w1",
		Name:  "orphan",
		Tasks: []*models.Task{root(task("t1", okType)), task("orphan", okType)},
	}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, statusOf(t, result, "orphan"))
	assert.Empty(t, auditFor(result, "orphan"))
}

func TestEngine_UserInputPausesAndResumes(t *testing.T) {
	ctx := context.Background()
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:   "w1",
		Name: "approval",
		Tasks: []*models.Task{
			root(task("t1", okType, inputTask("approve", task("deploy", okType, task("notify", okType))))),
		},
	}

	paused, err := engine.ExecuteWorkflow(ctx, wf, WithExecutionID("exec-1"))
	require.NoError(t, err)

	assert.True(t, paused.Success)
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, paused, "t1"))
	assert.Equal(t, models.TaskStatusWaitingForInput, statusOf(t, paused, "approve"))
	assert.Equal(t, models.TaskStatusPending, statusOf(t, paused, "deploy"))
	assert.Equal(t, models.TaskStatusPending, statusOf(t, paused, "notify"))
	assert.Empty(t, auditFor(paused, "approve"))
	assert.Empty(t, auditFor(paused, "deploy"))
	assert.Equal(t, []string{"approve"}, paused.WaitingTaskIDs())
	assert.Equal(t, models.WorkflowStatusWaitingForInput, models.AggregateStatus(paused.Tasks, paused.Success))

	t.Run("resume with input", func(t *testing.T) {
		result, err := engine.ResumeWorkflowExecution(ctx, wf, "exec-1", []string{"t1"}, map[string]any{"approve": "yes"})
		require.NoError(t, err)

		assert.True(t, result.Success)
		for _, id := range []string{"t1", "approve", "deploy", "notify"} {
			assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, id), id)
		}

		assert.Empty(t, auditFor(result, "t1"), "completed tasks are not re-run")
		assert.Len(t, auditFor(result, "deploy"), 1)
		assert.Equal(t, []string{"Received user input: yes"}, result.PerTaskLogs["approve"])
		assert.Equal(t, models.WorkflowStatusComplete, models.AggregateStatus(result.Tasks, result.Success))
	})

	t.Run("resume with completed ids", func(t *testing.T) {
		result, err := engine.ResumeWorkflowExecution(ctx, wf, "exec-1", []string{"t1", "approve"}, nil)
		require.NoError(t, err)

		assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "deploy"))
		assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "notify"))
	})

	t.Run("resume without the input stays paused", func(t *testing.T) {
		result, err := engine.ResumeWorkflowExecution(ctx, wf, "exec-1", []string{"t1"}, nil)
		require.NoError(t, err)

		assert.Equal(t, models.TaskStatusWaitingForInput, statusOf(t, result, "approve"))
	})
}

func TestEngine_WaitingTaskDoesNotBlockSiblings(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:   "w1",
		Name: "branches",
		Tasks: []*models.Task{
			root(inputTask("approve", task("after-approve", okType))),
			root(task("other", okType, task("after-other", okType))),
		},
	}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusWaitingForInput, statusOf(t, result, "approve"))
	assert.Equal(t, models.TaskStatusPending, statusOf(t, result, "after-approve"))
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "after-other"))
}

func TestEngine_HandlerPanicIsFatal(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	wf := &models.EngineWorkflow{
		ID:    "w1",
		Name:  "panics",
		Tasks: []*models.Task{root(task("boom", panicType)), root(task("fine", okType))},
	}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsHandlerPanic(err))
	assert.ErrorIs(t, err, ErrHandlerPanic)

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, ErrorKindExecution, engineErr.Kind)
	assert.Equal(t, "boom", engineErr.TaskID)
	assert.Contains(t, err.Error(), "handler bug")
}

func TestEngine_RejectsInvalidWorkflows(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	tests := []struct {
		name string
		wf   *models.EngineWorkflow
	}{
		{
			name: "no tasks",
			wf:   &models.EngineWorkflow{ID: "w1", Name: "empty"},
		},
		{
			name: "duplicate ids across the tree",
			wf: &models.EngineWorkflow{ID: "w1", Name: "dup", Tasks: []*models.Task{
				root(task("t1", okType, task("t1", okType))),
			}},
		},
		{
			name: "task without function",
			wf: &models.EngineWorkflow{ID: "w1", Name: "nofn", Tasks: []*models.Task{
				root(task("t1", okType, &models.Task{ID: "t2"})),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ExecuteWorkflow(context.Background(), tt.wf)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
			assert.False(t, IsHandlerPanic(err))
		})
	}
}

func TestEngine_RejectsTasksReachedTwice(t *testing.T) {
	engine := New(testRegistry(), testLogger())

	backEdge := root(task("t1", okType, task("t2", okType)))
	backEdge.NextTasks[0].NextTasks = []*models.Task{backEdge}

	shared := task("t3", okType)

	tests := map[string]*models.EngineWorkflow{
		"back edge": {ID: "w1", Name: "loop", Tasks: []*models.Task{backEdge}},
		"shared child": {ID: "w1", Name: "diamond", Tasks: []*models.Task{
			root(task("t1", okType, shared)),
			root(task("t2", okType, shared)),
		}},
	}

	for name, wf := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := engine.ExecuteWorkflow(context.Background(), wf)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
			assert.ErrorIs(t, err, models.ErrNotATree)
		})
	}
}

func TestEngine_RoundDispatchIsConcurrent(t *testing.T) {
	r := registry.NewRegistry(testLogger())

	var barrier sync.WaitGroup
	barrier.Add(2)

	released := make(chan struct{})
	go func() {
		barrier.Wait()
		close(released)
	}()

	r.RegisterFunc("rendezvous", func(context.Context, *models.Task, protocol.TaskContext) (models.TaskResult, error) {
		barrier.Done()

		select {
		case <-released:
			return models.SuccessResult(nil), nil
		case <-time.After(5 * time.Second):
			return models.FailureResult("peer never started"), nil
		}
	})

	wf := &models.EngineWorkflow{
		ID:    "w1",
		Name:  "parallel",
		Tasks: []*models.Task{root(task("a", "rendezvous")), root(task("b", "rendezvous"))},
	}

	result, err := New(r, testLogger()).ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	assert.True(t, result.Success, result.Errors)
}

func TestEngine_HandlersSeePredecessorOutputs(t *testing.T) {
	r := testRegistry()

	var seen any
	r.RegisterFunc("reader", func(_ context.Context, _ *models.Task, tc protocol.TaskContext) (models.TaskResult, error) {
		seen, _ = tc.Output("t1")

		return models.SuccessResult(nil), nil
	})

	wf := &models.EngineWorkflow{
		ID:    "w1",
		Name:  "outputs",
		Tasks: []*models.Task{root(task("t1", okType, task("t2", "reader")))},
	}

	_, err := New(r, testLogger()).ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"task": "t1", "changes_count": 2}, seen)
}

func TestEngine_ExecuteGraph_TwoTaskScenario(t *testing.T) {
	r := registry.NewRegistry(testLogger())

	var (
		mu     sync.Mutex
		rounds [][]string
		last   = -1
	)

	r.RegisterFunc(okType, func(_ context.Context, task *models.Task, tc protocol.TaskContext) (models.TaskResult, error) {
		mu.Lock()
		defer mu.Unlock()

		// A task sees the outputs of every earlier round.
		n := len(tc.Outputs())
		if n != last {
			rounds = append(rounds, nil)
			last = n
		}
		rounds[len(rounds)-1] = append(rounds[len(rounds)-1], task.ID)

		return models.SuccessResult(task.ID), nil
	})

	wf := &models.FlatWorkflow{
		ID:   "w1",
		Name: "two",
		Tasks: []*models.Task{
			{ID: "t1", Function: models.CustomFunction{Name: okType}},
			{ID: "t2", Function: models.CustomFunction{Name: okType}, Dependencies: []string{"t1"}},
		},
	}

	result, err := New(r, testLogger()).ExecuteGraph(context.Background(), wf)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"t1"}, {"t2"}}, rounds)
	assert.True(t, result.Success)
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "t1"))
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, result, "t2"))
	require.Len(t, result.AuditTrail, 2)
	assert.Equal(t, models.AuditStatusSuccess, result.AuditTrail[0].Status)
	assert.Equal(t, models.AuditStatusSuccess, result.AuditTrail[1].Status)
}

func TestEngine_ExecuteGraph_PauseAndResume(t *testing.T) {
	ctx := context.Background()
	engine := New(testRegistry(), testLogger())

	wf := &models.FlatWorkflow{
		ID:   "w1",
		Name: "flat",
		Tasks: []*models.Task{
			{ID: "build", Function: models.CustomFunction{Name: okType}},
			{ID: "approve", Function: models.UserInputPrompt{Prompt: "Ship it?"}, Dependencies: []string{"build"}},
			{ID: "lint", Function: models.CustomFunction{Name: okType}, Dependencies: []string{"build"}},
			{ID: "deploy", Function: models.CustomFunction{Name: okType}, Dependencies: []string{"approve", "lint"}},
		},
	}

	paused, err := engine.ExecuteGraph(ctx, wf, WithExecutionID("exec-1"))
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusWaitingForInput, statusOf(t, paused, "approve"))
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, paused, "lint"))
	assert.Equal(t, models.TaskStatusPending, statusOf(t, paused, "deploy"))

	resumed, err := engine.ResumeGraphExecution(ctx, wf, "exec-1", []string{"build", "lint"}, map[string]any{"approve": true})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusComplete, statusOf(t, resumed, "deploy"))
	assert.Len(t, resumed.AuditTrail, 1)
}

func TestEngine_ExecuteGraph_RejectsCycles(t *testing.T) {
	wf := &models.FlatWorkflow{
		ID:   "w1",
		Name: "cycle",
		Tasks: []*models.Task{
			{ID: "a", Function: models.CustomFunction{Name: okType}, Dependencies: []string{"b"}},
			{ID: "b", Function: models.CustomFunction{Name: okType}, Dependencies: []string{"a"}},
		},
	}

	_, err := New(testRegistry(), testLogger()).ExecuteGraph(context.Background(), wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.ErrorIs(t, err, graph.ErrCircularDependency)
}

func TestEngine_PublishesLifecycleEvents(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "exec-1", mock.Anything).Return(nil)

	engine := New(testRegistry(), testLogger(), WithPublisher(bus))

	wf := &models.EngineWorkflow{
		ID:    "w1",
		Name:  "events",
		Tasks: []*models.Task{root(task("t1", okType, inputTask("approve"))), root(task("bad", failType))},
	}

	_, err := engine.ExecuteWorkflow(context.Background(), wf, WithExecutionID("exec-1"))
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.WorkflowExecutionStartedEvent,
		events.TaskCompletedEvent,
		events.TaskFailedEvent,
		events.TaskWaitingForInputEvent,
		events.WorkflowExecutionPausedEvent,
	}, bus.PublishedTypes())
}

func TestEngine_PublishFailureIsNotFatal(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	engine := New(testRegistry(), testLogger(), WithPublisher(bus))

	wf := &models.EngineWorkflow{ID: "w1", Name: "events", Tasks: []*models.Task{root(task("t1", okType))}}

	result, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []events.EventType{
		events.WorkflowExecutionStartedEvent,
		events.TaskCompletedEvent,
		events.WorkflowExecutionCompletedEvent,
	}, bus.PublishedTypes())
}

func TestEngine_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	engine := New(testRegistry(), testLogger(), WithTracer(provider.Tracer("test")))

	wf := &models.EngineWorkflow{
		ID:    "w1",
		Name:  "traced",
		Tasks: []*models.Task{root(task("t1", okType, task("t2", okType)))},
	}

	_, err := engine.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, span := range recorder.Ended() {
		counts[span.Name()]++
	}

	assert.Equal(t, 1, counts["workflow.execute"])
	assert.Equal(t, 2, counts["workflow.round"])
	assert.Equal(t, 2, counts["workflow.task"])
}
