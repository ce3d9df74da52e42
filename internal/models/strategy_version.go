package models

import (
	"time"

	"gorm.io/datatypes"
)

// StrategyVersion is an immutable parameter snapshot. Version numbers are
// monotonic per strategy; Deployed is the only field ever updated, and only
// through the transactional deploy path.
type StrategyVersion struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	StrategyID uint64 `gorm:"not null;uniqueIndex:idx_strategy_versions_number,priority:1"`

	VersionNumber int `gorm:"not null;uniqueIndex:idx_strategy_versions_number,priority:2"`

	Content   datatypes.JSON `gorm:"type:jsonb;not null"`
	Author    string         `gorm:"type:varchar(50)"`
	Changelog string         `gorm:"type:text"`

	Deployed bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (StrategyVersion) TableName() string {
	return "strategy_versions"
}
