package kv

import (
	"context"
	"log/slog"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	bolt "go.etcd.io/bbolt"
)

// TaskRepository stores per-task execution records under
// "task:{execution_id}:{task_id}".
type TaskRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewTaskRepository(store *Store) *TaskRepository {
	return &TaskRepository{
		store:  store,
		logger: store.logger.With("repository", "task"),
	}
}

func (r *TaskRepository) SaveTaskExecution(ctx context.Context, task *models.TaskExecution) error {
	key := string(TaskKey(task.ExecutionID, task.TaskID))

	if err := validateID("execution", task.ExecutionID); err != nil {
		return persistence.NewStoreError("SaveTaskExecution", key, err)
	}

	if err := validateRecord(task); err != nil {
		return persistence.NewStoreError("SaveTaskExecution", key, err)
	}

	data, err := encode("task execution", task)
	if err != nil {
		return persistence.NewStoreError("SaveTaskExecution", key, err)
	}

	err = r.store.WriteWithRetry(ctx, "SaveTaskExecution", func(tx *bolt.Tx) error {
		return bucket(tx, BucketTasks).Put([]byte(key), data)
	})
	if err != nil {
		return persistence.NewStoreError("SaveTaskExecution", key, err)
	}

	return nil
}

func (r *TaskRepository) GetTaskExecution(ctx context.Context, executionID, taskID string) (*models.TaskExecution, error) {
	key := TaskKey(executionID, taskID)

	var task models.TaskExecution

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		data := bucket(tx, BucketTasks).Get(key)
		if data == nil {
			return persistence.ErrTaskExecutionNotFound
		}

		return decode("task execution", data, &task)
	})
	if err != nil {
		return nil, persistence.NewStoreError("GetTaskExecution", string(key), err)
	}

	return &task, nil
}

// ListTaskExecutions returns the execution's tasks in key order.
func (r *TaskRepository) ListTaskExecutions(ctx context.Context, executionID string) ([]*models.TaskExecution, error) {
	var tasks []*models.TaskExecution

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		return scanPrefix(bucket(tx, BucketTasks), TaskKeyPrefix(executionID), func(_, v []byte) error {
			var task models.TaskExecution
			if err := decode("task execution", v, &task); err != nil {
				return err
			}

			tasks = append(tasks, &task)

			return nil
		})
	})
	if err != nil {
		return nil, persistence.NewStoreError("ListTaskExecutions", executionID, err)
	}

	return tasks, nil
}

func (r *TaskRepository) DeleteTaskExecutions(ctx context.Context, executionID string) (int, error) {
	var deleted int

	err := r.store.WriteWithRetry(ctx, "DeleteTaskExecutions", func(tx *bolt.Tx) error {
		var err error
		deleted, err = deleteTasks(tx, executionID)

		return err
	})
	if err != nil {
		return 0, persistence.NewStoreError("DeleteTaskExecutions", executionID, err)
	}

	r.logger.DebugContext(ctx, "Deleted task executions", "execution_id", executionID, "count", deleted)

	return deleted, nil
}

func deleteTasks(tx *bolt.Tx, executionID string) (int, error) {
	tasks := bucket(tx, BucketTasks)
	keys := keysWithPrefix(tasks, TaskKeyPrefix(executionID))

	for _, k := range keys {
		if err := tasks.Delete(k); err != nil {
			return 0, err
		}
	}

	return len(keys), nil
}
