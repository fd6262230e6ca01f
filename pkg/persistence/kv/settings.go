package kv

import (
	"context"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	bolt "go.etcd.io/bbolt"
)

// SettingsRepository stores free-form key/value settings.
type SettingsRepository struct {
	store *Store
}

func NewSettingsRepository(store *Store) *SettingsRepository {
	return &SettingsRepository{store: store}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		data := bucket(tx, BucketSettings).Get(SettingKey(key))
		if data == nil {
			return persistence.ErrSettingNotFound
		}

		return decode("setting", data, &setting)
	})
	if err != nil {
		return nil, persistence.NewStoreError("GetSetting", key, err)
	}

	return &setting, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key string, value any) error {
	setting := &models.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	if err := validateRecord(setting); err != nil {
		return persistence.NewStoreError("SetSetting", key, err)
	}

	data, err := encode("setting", setting)
	if err != nil {
		return persistence.NewStoreError("SetSetting", key, err)
	}

	err = r.store.WriteWithRetry(ctx, "SetSetting", func(tx *bolt.Tx) error {
		return bucket(tx, BucketSettings).Put(SettingKey(key), data)
	})
	if err != nil {
		return persistence.NewStoreError("SetSetting", key, err)
	}

	return nil
}

func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	err := r.store.WriteWithRetry(ctx, "DeleteSetting", func(tx *bolt.Tx) error {
		settings := bucket(tx, BucketSettings)
		if settings.Get(SettingKey(key)) == nil {
			return persistence.ErrSettingNotFound
		}

		return settings.Delete(SettingKey(key))
	})
	if err != nil {
		return persistence.NewStoreError("DeleteSetting", key, err)
	}

	return nil
}

// List returns every setting in key order.
func (r *SettingsRepository) List(ctx context.Context) ([]*models.Setting, error) {
	var settings []*models.Setting

	err := r.store.Read(ctx, func(tx *bolt.Tx) error {
		return bucket(tx, BucketSettings).ForEach(func(_, v []byte) error {
			var setting models.Setting
			if err := decode("setting", v, &setting); err != nil {
				return err
			}

			settings = append(settings, &setting)

			return nil
		})
	})
	if err != nil {
		return nil, persistence.NewStoreError("ListSettings", "", err)
	}

	return settings, nil
}
