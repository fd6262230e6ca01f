package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/taskflow/pkg/persistence"
	bolt "go.etcd.io/bbolt"
)

// Persistence implements persistence.Persistence on a single Store.
type Persistence struct {
	store    *Store
	workflow *WorkflowRepository
	task     *TaskRepository
	settings *SettingsRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence opens the store at path and builds its repositories.
func NewPersistence(path string, opts ...Option) (*Persistence, error) {
	store, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}

	return &Persistence{
		store:    store,
		workflow: NewWorkflowRepository(store),
		task:     NewTaskRepository(store),
		settings: NewSettingsRepository(store),
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflow
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.task
}

func (p *Persistence) SettingsRepository() persistence.SettingsRepository {
	return p.settings
}

// Store exposes the underlying transactional store.
func (p *Persistence) Store() *Store {
	return p.store
}

// HealthCheck verifies every bucket is present.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.store.Read(ctx, func(tx *bolt.Tx) error {
		var errs []error
		for _, name := range allBuckets {
			if tx.Bucket([]byte(name)) == nil {
				errs = append(errs, fmt.Errorf("bucket %s missing", name))
			}
		}

		return errors.Join(errs...)
	})
}

func (p *Persistence) Close(_ context.Context) error {
	return p.store.Close()
}
