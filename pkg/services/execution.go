package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/workflow"
	"github.com/google/uuid"
)

// Runner is the engine surface the service drives.
type Runner interface {
	ExecuteWorkflow(ctx context.Context, wf *models.EngineWorkflow, opts ...workflow.RunOption) (*models.WorkflowResult, error)
	ResumeWorkflowExecution(ctx context.Context, wf *models.EngineWorkflow, executionID string, completedTaskIDs []string, inputs map[string]any) (*models.WorkflowResult, error)
}

// Execution is a recorded run.
type Execution struct {
	ID     string                 `json:"id"`
	Status models.WorkflowStatus  `json:"status"`
	Result *models.WorkflowResult `json:"result"`
}

// ExecutionService starts and resumes runs and records each result as both
// a WorkflowExecution and a WorkflowMetadata. The two writes are independent;
// a failure between them leaves the views diverged and nothing repairs that.
type ExecutionService struct {
	persistence persistence.Persistence
	engine      Runner
	logger      *slog.Logger
	now         func() time.Time
}

func NewExecution(persistence persistence.Persistence, engine Runner, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{
		persistence: persistence,
		engine:      engine,
		logger:      logger.With("module", "execution_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *ExecutionService) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Start allocates an execution id, marks it running, runs the workflow and
// records the result.
func (s *ExecutionService) Start(ctx context.Context, wf *models.EngineWorkflow) (*Execution, error) {
	if wf == nil {
		return nil, newServiceError("Start", "", ErrWorkflowNil)
	}

	executionID := uuid.NewString()
	startedAt := s.now()
	logger := s.logger.With("execution_id", executionID, "workflow_id", wf.ID)

	metadata := &models.WorkflowMetadata{
		ID:             executionID,
		WorkflowName:   wf.Name,
		StartTimestamp: startedAt,
		Status:         models.WorkflowStatusRunning,
		TaskIDs:        taskIDs(wf),
	}
	if err := s.persistence.WorkflowRepository().SaveMetadata(ctx, metadata); err != nil {
		return nil, newServiceError("Start", executionID, err)
	}

	logger.InfoContext(ctx, "Starting workflow execution")

	result, err := s.engine.ExecuteWorkflow(ctx, wf, workflow.WithExecutionID(executionID))
	if err != nil {
		s.markFailed(ctx, logger, executionID)

		return nil, newServiceError("Start", executionID, err)
	}

	return s.record(ctx, executionID, wf, startedAt, result, nil)
}

// Resume replays a paused run. Tasks whose persisted record is complete,
// or failed with a failure in the audit trail, form the completed set;
// inputs complete the tasks they name.
func (s *ExecutionService) Resume(ctx context.Context, wf *models.EngineWorkflow, executionID string, inputs map[string]any) (*Execution, error) {
	if wf == nil {
		return nil, newServiceError("Resume", executionID, ErrWorkflowNil)
	}

	if executionID == "" {
		return nil, newServiceError("Resume", "", ErrExecutionIDEmpty)
	}

	logger := s.logger.With("execution_id", executionID, "workflow_id", wf.ID)

	metadata, err := s.persistence.WorkflowRepository().GetMetadata(ctx, executionID)
	if err != nil {
		return nil, newServiceError("Resume", executionID, err)
	}

	if metadata.Status != models.WorkflowStatusWaitingForInput {
		return nil, newServiceError("Resume", executionID, fmt.Errorf("%w: status is %s", ErrNotResumable, metadata.Status))
	}

	records, err := s.persistence.TaskRepository().ListTaskExecutions(ctx, executionID)
	if err != nil {
		return nil, newServiceError("Resume", executionID, err)
	}

	audit, err := s.persistence.WorkflowRepository().ListAuditEntries(ctx, executionID)
	if err != nil {
		return nil, newServiceError("Resume", executionID, err)
	}

	auditedFailure := make(map[string]bool)
	for _, entry := range audit {
		if entry.Status == models.AuditStatusFailure {
			auditedFailure[entry.TaskID] = true
		}
	}

	previous := make(map[string]*models.TaskExecution, len(records))
	var completed []string

	for _, record := range records {
		previous[record.TaskID] = record

		// A Failed record without a failure entry was never reached.
		if record.Status == models.TaskStatusComplete || (record.Status == models.TaskStatusFailed && auditedFailure[record.TaskID]) {
			completed = append(completed, record.TaskID)
		}
	}

	if err := s.persistence.WorkflowRepository().UpdateWorkflowStatus(ctx, executionID, models.WorkflowStatusRunning); err != nil {
		return nil, newServiceError("Resume", executionID, err)
	}

	logger.InfoContext(ctx, "Resuming workflow execution", "completed", len(completed), "inputs", len(inputs))

	result, err := s.engine.ResumeWorkflowExecution(ctx, wf, executionID, completed, inputs)
	if err != nil {
		s.markFailed(ctx, logger, executionID)

		return nil, newServiceError("Resume", executionID, err)
	}

	return s.record(ctx, executionID, wf, metadata.StartTimestamp, result, previous)
}

// Record persists a result: the execution record, one task record per task,
// the audit entries and finally the metadata with the aggregate status.
func (s *ExecutionService) Record(ctx context.Context, executionID string, wf *models.EngineWorkflow, startedAt time.Time, result *models.WorkflowResult) (*Execution, error) {
	if wf == nil {
		return nil, newServiceError("Record", executionID, ErrWorkflowNil)
	}

	if executionID == "" {
		return nil, newServiceError("Record", "", ErrExecutionIDEmpty)
	}

	return s.record(ctx, executionID, wf, startedAt, result, nil)
}

func (s *ExecutionService) record(
	ctx context.Context,
	executionID string,
	wf *models.EngineWorkflow,
	startedAt time.Time,
	result *models.WorkflowResult,
	previous map[string]*models.TaskExecution,
) (*Execution, error) {
	workflows := s.persistence.WorkflowRepository()
	tasks := s.persistence.TaskRepository()
	now := s.now()

	if err := workflows.SaveExecution(ctx, models.NewWorkflowExecution(executionID, now, result)); err != nil {
		return nil, newServiceError("Record", executionID, err)
	}

	failed := make(map[string]bool)
	for _, entry := range result.AuditTrail {
		if entry.Status == models.AuditStatusFailure {
			failed[entry.TaskID] = true
		}
	}

	for _, info := range result.Tasks {
		record := taskExecution(executionID, info, result.PerTaskLogs[info.ID], previous[info.ID])
		if failed[info.ID] {
			record.Status = models.TaskStatusFailed
		}

		// Completed by a resume input without being dispatched.
		if record.Status == models.TaskStatusComplete && record.EndTimestamp.IsZero() {
			record.EndTimestamp = now
		}

		if err := tasks.SaveTaskExecution(ctx, record); err != nil {
			return nil, newServiceError("Record", executionID, err)
		}
	}

	if err := workflows.SaveAuditEntries(ctx, executionID, result.AuditTrail); err != nil {
		return nil, newServiceError("Record", executionID, err)
	}

	status := models.AggregateStatus(result.Tasks, result.Success)

	metadata := &models.WorkflowMetadata{
		ID:             executionID,
		WorkflowName:   wf.Name,
		StartTimestamp: startedAt,
		Status:         status,
		TaskIDs:        taskIDs(wf),
	}

	if waiting := result.WaitingTaskIDs(); len(waiting) > 0 {
		metadata.IsPaused = true
		metadata.PausedTaskID = &waiting[0]
	} else {
		metadata.EndTimestamp = &now
	}

	if err := workflows.SaveMetadata(ctx, metadata); err != nil {
		return nil, newServiceError("Record", executionID, err)
	}

	s.logger.InfoContext(ctx, "Recorded workflow execution",
		"execution_id", executionID,
		"status", status,
		"errors", len(result.Errors),
	)

	return &Execution{ID: executionID, Status: status, Result: result}, nil
}

func (s *ExecutionService) markFailed(ctx context.Context, logger *slog.Logger, executionID string) {
	if err := s.persistence.WorkflowRepository().UpdateWorkflowStatus(ctx, executionID, models.WorkflowStatusFailed); err != nil {
		logger.ErrorContext(ctx, "Failed to mark execution as failed", "error", err)
	}
}

// taskExecution builds the persisted record of a task, carrying over the
// logs and start time of a record from an earlier call.
func taskExecution(executionID string, info models.TaskInfo, logs []string, previous *models.TaskExecution) *models.TaskExecution {
	record := &models.TaskExecution{
		ExecutionID: executionID,
		TaskID:      info.ID,
		TaskName:    info.Name,
		Status:      info.Status,
		Logs:        append([]string(nil), logs...),
	}

	if info.StartedAt != nil {
		record.StartTimestamp = *info.StartedAt
	}

	if info.CompletedAt != nil && info.Status != models.TaskStatusWaitingForInput {
		record.EndTimestamp = *info.CompletedAt
	}

	if previous != nil {
		record.Logs = append(append([]string(nil), previous.Logs...), record.Logs...)

		if !previous.StartTimestamp.IsZero() {
			record.StartTimestamp = previous.StartTimestamp
		}

		if record.EndTimestamp.IsZero() {
			record.EndTimestamp = previous.EndTimestamp
		}

		// Not dispatched again, so an earlier failure still stands.
		if info.StartedAt == nil && previous.Status == models.TaskStatusFailed {
			record.Status = models.TaskStatusFailed
		}
	}

	return record
}

func taskIDs(wf *models.EngineWorkflow) []string {
	all := wf.AllTasks()

	ids := make([]string, len(all))
	for i, task := range all {
		ids[i] = task.ID
	}

	return ids
}
