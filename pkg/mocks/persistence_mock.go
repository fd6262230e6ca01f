package mocks

import (
	"context"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

var _ persistence.WorkflowRepository = (*MockWorkflowRepository)(nil)

func (m *MockWorkflowRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

func (m *MockWorkflowRepository) ListExecutions(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowExecution), args.Error(1)
}

func (m *MockWorkflowRepository) DeleteExecution(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockWorkflowRepository) SaveMetadata(ctx context.Context, metadata *models.WorkflowMetadata) error {
	args := m.Called(ctx, metadata)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetMetadata(ctx context.Context, id string) (*models.WorkflowMetadata, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowMetadata), args.Error(1)
}

func (m *MockWorkflowRepository) ListMetadata(ctx context.Context, limit int) ([]*models.WorkflowMetadata, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowMetadata), args.Error(1)
}

func (m *MockWorkflowRepository) ListMetadataByStatus(ctx context.Context, status models.WorkflowStatus, limit int) ([]*models.WorkflowMetadata, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowMetadata), args.Error(1)
}

func (m *MockWorkflowRepository) UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	args := m.Called(ctx, id, status)

	return args.Error(0)
}

func (m *MockWorkflowRepository) MarkPaused(ctx context.Context, id, taskID string) error {
	args := m.Called(ctx, id, taskID)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetWithTasks(ctx context.Context, id string) (*models.WorkflowWithTasks, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowWithTasks), args.Error(1)
}

func (m *MockWorkflowRepository) SaveAuditEntries(ctx context.Context, executionID string, entries []models.AuditEntry) error {
	args := m.Called(ctx, executionID, entries)

	return args.Error(0)
}

func (m *MockWorkflowRepository) ListAuditEntries(ctx context.Context, executionID string) ([]models.AuditEntry, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

// MockTaskRepository is a mock implementation of persistence.TaskRepository interface.
type MockTaskRepository struct {
	mock.Mock
}

var _ persistence.TaskRepository = (*MockTaskRepository)(nil)

func (m *MockTaskRepository) SaveTaskExecution(ctx context.Context, task *models.TaskExecution) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) GetTaskExecution(ctx context.Context, executionID, taskID string) (*models.TaskExecution, error) {
	args := m.Called(ctx, executionID, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.TaskExecution), args.Error(1)
}

func (m *MockTaskRepository) ListTaskExecutions(ctx context.Context, executionID string) ([]*models.TaskExecution, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TaskExecution), args.Error(1)
}

func (m *MockTaskRepository) DeleteTaskExecutions(ctx context.Context, executionID string) (int, error) {
	args := m.Called(ctx, executionID)

	return args.Int(0), args.Error(1)
}

// MockSettingsRepository is a mock implementation of persistence.SettingsRepository interface.
type MockSettingsRepository struct {
	mock.Mock
}

var _ persistence.SettingsRepository = (*MockSettingsRepository)(nil)

func (m *MockSettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Setting), args.Error(1)
}

func (m *MockSettingsRepository) Set(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)

	return args.Error(0)
}

func (m *MockSettingsRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)

	return args.Error(0)
}

func (m *MockSettingsRepository) List(ctx context.Context) ([]*models.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Setting), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows *MockWorkflowRepository
	Tasks     *MockTaskRepository
	Settings  *MockSettingsRepository
}

var _ persistence.Persistence = (*MockPersistence)(nil)

// NewMockPersistence wires fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows: &MockWorkflowRepository{},
		Tasks:     &MockTaskRepository{},
		Settings:  &MockSettingsRepository{},
	}
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) TaskRepository() persistence.TaskRepository {
	return m.Tasks
}

func (m *MockPersistence) SettingsRepository() persistence.SettingsRepository {
	return m.Settings
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
