package kv

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	bolt "go.etcd.io/bbolt"
)

// WorkflowRepository stores executions, metadata and audit entries.
type WorkflowRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewWorkflowRepository(store *Store) *WorkflowRepository {
	return &WorkflowRepository{
		store:  store,
		logger: store.logger.With("repository", "workflow"),
	}
}

func (r *WorkflowRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := validateID("execution", execution.ID); err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	if err := validateRecord(execution); err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	data, err := encode("workflow execution", execution)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	err = r.store.WriteWithRetry(ctx, "SaveExecution", func(tx *bolt.Tx) error {
		executions := bucket(tx, BucketExecutions)
		index := bucket(tx, BucketExecutionIndex)

		// An upsert with a new timestamp must not leave the old index entry behind.
		if previous := executions.Get(ExecutionKey(execution.ID)); previous != nil {
			var old models.WorkflowExecution
			if err := decode("workflow execution", previous, &old); err == nil && !old.Timestamp.Equal(execution.Timestamp) {
				if err := index.Delete(ExecutionIndexKey(old.Timestamp, old.ID)); err != nil {
					return err
				}
			}
		}

		if err := executions.Put(ExecutionKey(execution.ID), data); err != nil {
			return err
		}

		return index.Put(ExecutionIndexKey(execution.Timestamp, execution.ID), ExecutionKey(execution.ID))
	})
	if err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	r.logger.DebugContext(ctx, "Saved workflow execution", "execution_id", execution.ID, "success", execution.Success)

	return nil
}

func (r *WorkflowRepository) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		data := bucket(tx, BucketExecutions).Get(ExecutionKey(id))
		if data == nil || IsMetadataKey(ExecutionKey(id)) {
			return persistence.ErrExecutionNotFound
		}

		return decode("workflow execution", data, &execution)
	})
	if err != nil {
		return nil, persistence.NewStoreError("GetExecution", id, err)
	}

	return &execution, nil
}

func (r *WorkflowRepository) ListExecutions(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	var executions []*models.WorkflowExecution

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		records := bucket(tx, BucketExecutions)
		c := bucket(tx, BucketExecutionIndex).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(executions) >= limit {
				break
			}

			data := records.Get(v)
			if data == nil {
				r.logger.WarnContext(ctx, "Execution index entry without record", "index_key", string(k))

				continue
			}

			var execution models.WorkflowExecution
			if err := decode("workflow execution", data, &execution); err != nil {
				return err
			}

			executions = append(executions, &execution)
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStoreError("ListExecutions", "", err)
	}

	return executions, nil
}

func (r *WorkflowRepository) DeleteExecution(ctx context.Context, id string) error {
	err := r.store.WriteWithRetry(ctx, "DeleteExecution", func(tx *bolt.Tx) error {
		executions := bucket(tx, BucketExecutions)

		data := executions.Get(ExecutionKey(id))
		if data == nil || IsMetadataKey(ExecutionKey(id)) {
			return persistence.ErrExecutionNotFound
		}

		var execution models.WorkflowExecution
		if err := decode("workflow execution", data, &execution); err != nil {
			return err
		}

		if err := executions.Delete(ExecutionKey(id)); err != nil {
			return err
		}

		if err := bucket(tx, BucketExecutionIndex).Delete(ExecutionIndexKey(execution.Timestamp, id)); err != nil {
			return err
		}

		if err := executions.Delete(MetadataKey(id)); err != nil {
			return err
		}

		_, err := deleteTasks(tx, id)

		return err
	})
	if err != nil {
		return persistence.NewStoreError("DeleteExecution", id, err)
	}

	r.logger.InfoContext(ctx, "Deleted workflow execution", "execution_id", id)

	return nil
}

func (r *WorkflowRepository) SaveMetadata(ctx context.Context, metadata *models.WorkflowMetadata) error {
	if err := validateID("execution", metadata.ID); err != nil {
		return persistence.NewStoreError("SaveMetadata", metadata.ID, err)
	}

	if err := validateRecord(metadata); err != nil {
		return persistence.NewStoreError("SaveMetadata", metadata.ID, err)
	}

	data, err := encode("workflow metadata", metadata)
	if err != nil {
		return persistence.NewStoreError("SaveMetadata", metadata.ID, err)
	}

	err = r.store.WriteWithRetry(ctx, "SaveMetadata", func(tx *bolt.Tx) error {
		return bucket(tx, BucketExecutions).Put(MetadataKey(metadata.ID), data)
	})
	if err != nil {
		return persistence.NewStoreError("SaveMetadata", metadata.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetMetadata(ctx context.Context, id string) (*models.WorkflowMetadata, error) {
	var metadata *models.WorkflowMetadata

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		var err error
		metadata, err = getMetadata(tx, id)

		return err
	})
	if err != nil {
		return nil, persistence.NewStoreError("GetMetadata", id, err)
	}

	return metadata, nil
}

func (r *WorkflowRepository) ListMetadata(ctx context.Context, limit int) ([]*models.WorkflowMetadata, error) {
	return r.listMetadata(ctx, "ListMetadata", limit, func(*models.WorkflowMetadata) bool { return true })
}

func (r *WorkflowRepository) ListMetadataByStatus(ctx context.Context, status models.WorkflowStatus, limit int) ([]*models.WorkflowMetadata, error) {
	return r.listMetadata(ctx, "ListMetadataByStatus", limit, func(m *models.WorkflowMetadata) bool {
		return m.Status == status
	})
}

// listMetadata returns matching metadata ordered by start time, newest first.
func (r *WorkflowRepository) listMetadata(ctx context.Context, op string, limit int, keep func(*models.WorkflowMetadata) bool) ([]*models.WorkflowMetadata, error) {
	var all []*models.WorkflowMetadata

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		return scanPrefix(bucket(tx, BucketExecutions), []byte(MetadataPrefix), func(_, v []byte) error {
			var metadata models.WorkflowMetadata
			if err := decode("workflow metadata", v, &metadata); err != nil {
				return err
			}

			if keep(&metadata) {
				all = append(all, &metadata)
			}

			return nil
		})
	})
	if err != nil {
		return nil, persistence.NewStoreError(op, "", err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].StartTimestamp.After(all[j].StartTimestamp)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}

func (r *WorkflowRepository) UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	return r.updateMetadata(ctx, "UpdateWorkflowStatus", id, func(metadata *models.WorkflowMetadata) {
		metadata.Status = status

		switch status {
		case models.WorkflowStatusComplete, models.WorkflowStatusFailed:
			now := time.Now().UTC()
			metadata.EndTimestamp = &now
			metadata.IsPaused = false
			metadata.PausedTaskID = nil
		case models.WorkflowStatusRunning:
			metadata.IsPaused = false
			metadata.PausedTaskID = nil
		}
	})
}

func (r *WorkflowRepository) MarkPaused(ctx context.Context, id, taskID string) error {
	return r.updateMetadata(ctx, "MarkPaused", id, func(metadata *models.WorkflowMetadata) {
		metadata.Status = models.WorkflowStatusWaitingForInput
		metadata.IsPaused = true
		metadata.PausedTaskID = &taskID
	})
}

func (r *WorkflowRepository) updateMetadata(ctx context.Context, op, id string, mutate func(*models.WorkflowMetadata)) error {
	err := r.store.WriteWithRetry(ctx, op, func(tx *bolt.Tx) error {
		metadata, err := getMetadata(tx, id)
		if err != nil {
			return err
		}

		mutate(metadata)

		data, err := encode("workflow metadata", metadata)
		if err != nil {
			return err
		}

		return bucket(tx, BucketExecutions).Put(MetadataKey(id), data)
	})
	if err != nil {
		return persistence.NewStoreError(op, id, err)
	}

	return nil
}

func (r *WorkflowRepository) GetWithTasks(ctx context.Context, id string) (*models.WorkflowWithTasks, error) {
	var result models.WorkflowWithTasks

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		metadata, err := getMetadata(tx, id)
		if err != nil {
			return err
		}

		result.Metadata = metadata

		tasks := bucket(tx, BucketTasks)
		for _, taskID := range metadata.TaskIDs {
			data := tasks.Get(TaskKey(id, taskID))
			if data == nil {
				continue
			}

			var task models.TaskExecution
			if err := decode("task execution", data, &task); err != nil {
				return err
			}

			result.Tasks = append(result.Tasks, &task)
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStoreError("GetWithTasks", id, err)
	}

	return &result, nil
}

func (r *WorkflowRepository) SaveAuditEntries(ctx context.Context, executionID string, entries []models.AuditEntry) error {
	if err := validateID("execution", executionID); err != nil {
		return persistence.NewStoreError("SaveAuditEntries", executionID, err)
	}

	if len(entries) == 0 {
		return nil
	}

	encoded := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		data, err := encode("audit entry", entry)
		if err != nil {
			return persistence.NewStoreError("SaveAuditEntries", executionID, err)
		}

		encoded = append(encoded, data)
	}

	err := r.store.WriteWithRetry(ctx, "SaveAuditEntries", func(tx *bolt.Tx) error {
		audit := bucket(tx, BucketAudit)
		for _, data := range encoded {
			seq, err := audit.NextSequence()
			if err != nil {
				return err
			}

			if err := audit.Put(AuditKey(executionID, seq), data); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return persistence.NewStoreError("SaveAuditEntries", executionID, err)
	}

	return nil
}

func (r *WorkflowRepository) ListAuditEntries(ctx context.Context, executionID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		return scanPrefix(bucket(tx, BucketAudit), AuditKeyPrefix(executionID), func(_, v []byte) error {
			var entry models.AuditEntry
			if err := decode("audit entry", v, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)

			return nil
		})
	})
	if err != nil {
		return nil, persistence.NewStoreError("ListAuditEntries", executionID, err)
	}

	return entries, nil
}

func getMetadata(tx *bolt.Tx, id string) (*models.WorkflowMetadata, error) {
	data := bucket(tx, BucketExecutions).Get(MetadataKey(id))
	if data == nil {
		return nil, persistence.ErrWorkflowMetadataNotFound
	}

	var metadata models.WorkflowMetadata
	if err := decode("workflow metadata", data, &metadata); err != nil {
		return nil, err
	}

	return &metadata, nil
}
