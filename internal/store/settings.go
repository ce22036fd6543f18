package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"site-pulse/internal/model"
)

// Settings reads and writes the key/value settings table.
type Settings struct {
	db *gorm.DB
}

func NewSettings(db *gorm.DB) *Settings {
	return &Settings{db: db}
}

// Get returns the stored value and whether the key exists.
func (s *Settings) Get(key string) (string, bool, error) {
	var setting model.Setting
	if err := s.db.Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return setting.Value, true, nil
}

// Put creates or updates key.
func (s *Settings) Put(key, value string) error {
	err := s.db.Model(&model.Setting{}).Where("key = ?", key).
		Assign(model.Setting{Value: value}).
		FirstOrCreate(&model.Setting{Key: key}).Error
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}
