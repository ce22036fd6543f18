package model

import "gorm.io/gorm"

// Setting is a runtime-editable key/value pair.
type Setting struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

const (
	SettingKeyTargetURL = "target_url"
)
