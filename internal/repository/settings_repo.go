package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsStore is the key/value configuration store shared by the
// schedule policy and the dispatch coordinator.
type SettingsStore interface {
	// Get returns nil when the key is absent or stored as NULL.
	Get(ctx context.Context, key string) (*string, error)
	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value string) error
}

type GormSettingsRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db, now: time.Now}
}

func (r *GormSettingsRepo) Get(ctx context.Context, key string) (*string, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.Value, nil
}

func (r *GormSettingsRepo) Set(ctx context.Context, key string, value string) error {
	model := SettingModel{
		Key:       key,
		Value:     &value,
		UpdatedAt: r.now().UTC(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model).Error
}
