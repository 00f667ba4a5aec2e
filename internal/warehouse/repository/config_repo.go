package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"gorm.io/gorm"
)

// ConfigRepository reads and writes the warehouse_config key/value table.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the value for a key, or ErrNotFound.
func (r *ConfigRepository) Get(ctx context.Context, key string) (string, error) {
	var row entity.ConfigEntry
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return row.Value, nil
}

// GetOrDefault returns the value for a key or the fallback when absent.
func (r *ConfigRepository) GetOrDefault(ctx context.Context, key, fallback string) (string, error) {
	v, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	return v, err
}

// Set upserts a config value.
func (r *ConfigRepository) Set(ctx context.Context, key, value string) error {
	row := entity.ConfigEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Save(&row).Error
}

// SeedDefaults writes bootstrap values for keys that are not present yet.
func (r *ConfigRepository) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	for key, value := range defaults {
		_, err := r.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			if err := r.Set(ctx, key, value); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
