package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry is a durable TTL cache row. Expiry is evaluated on read against
// the caller-supplied TTL; the row itself carries only the write timestamp.
type CacheEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Key  string         `gorm:"type:varchar(200);not null;uniqueIndex"`
	Data datatypes.JSON `gorm:"type:jsonb;not null"`

	Timestamp time.Time `gorm:"type:timestamptz;not null;index"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
