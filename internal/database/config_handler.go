package database

import (
	"context"
	"errors"

	"iplog/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigStore is the raw key/value accessor over the config table.
type ConfigStore struct {
	db *gorm.DB
}

func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrDatabaseNotInitialised
	}
	if ctx != nil {
		return s.db.WithContext(ctx), nil
	}
	return s.db, nil
}

// Get returns the stored value and whether the key exists.
func (s *ConfigStore) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return "", false, err
	}

	var entry domain.ConfigEntry
	err = db.Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, storageErr("read config", err)
	}
	return entry.Value, true, nil
}

// Set replaces the value stored under key.
func (s *ConfigStore) Set(ctx context.Context, key, value string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	entry := domain.ConfigEntry{Key: key, Value: value}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entry).Error
	if err != nil {
		return storageErr("write config", err)
	}
	return nil
}
