package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserSetting stores per-user runtime settings, e.g. the virtual budget.
type UserSetting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	UserID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_settings_key,priority:1"`
	Key    string `gorm:"type:varchar(120);not null;uniqueIndex:idx_user_settings_key,priority:2"`

	Value datatypes.JSON `gorm:"type:jsonb;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (UserSetting) TableName() string {
	return "user_settings"
}
