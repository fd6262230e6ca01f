// Package persistence provides the data storage abstraction layer for workflow runs.
package persistence

import (
	"context"

	"github.com/dukex/taskflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	TaskRepository() TaskRepository
	SettingsRepository() SettingsRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores the two views of a run (WorkflowExecution and
// WorkflowMetadata) plus its audit trail. The two views are written
// independently; the repository does not keep them consistent.
type WorkflowRepository interface {
	// SaveExecution upserts the execution record and its timestamp index entry.
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error)
	// ListExecutions returns at most limit executions, newest first. A limit
	// <= 0 returns every execution.
	ListExecutions(ctx context.Context, limit int) ([]*models.WorkflowExecution, error)
	// DeleteExecution removes the execution, its index entry, its metadata and
	// its task executions. Audit entries are kept.
	DeleteExecution(ctx context.Context, id string) error

	SaveMetadata(ctx context.Context, metadata *models.WorkflowMetadata) error
	GetMetadata(ctx context.Context, id string) (*models.WorkflowMetadata, error)
	ListMetadata(ctx context.Context, limit int) ([]*models.WorkflowMetadata, error)
	ListMetadataByStatus(ctx context.Context, status models.WorkflowStatus, limit int) ([]*models.WorkflowMetadata, error)
	UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error
	MarkPaused(ctx context.Context, id, taskID string) error
	// GetWithTasks joins metadata with its task executions in TaskIDs order.
	GetWithTasks(ctx context.Context, id string) (*models.WorkflowWithTasks, error)

	SaveAuditEntries(ctx context.Context, executionID string, entries []models.AuditEntry) error
	ListAuditEntries(ctx context.Context, executionID string) ([]models.AuditEntry, error)
}

type TaskRepository interface {
	SaveTaskExecution(ctx context.Context, task *models.TaskExecution) error
	GetTaskExecution(ctx context.Context, executionID, taskID string) (*models.TaskExecution, error)
	ListTaskExecutions(ctx context.Context, executionID string) ([]*models.TaskExecution, error)
	DeleteTaskExecutions(ctx context.Context, executionID string) (int, error)
}

type SettingsRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*models.Setting, error)
}
