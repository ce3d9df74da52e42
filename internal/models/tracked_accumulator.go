package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TrackedAccumulator is a user's multi-leg virtual bet.
type TrackedAccumulator struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_tracked_accumulators_owner,priority:1"`

	AccumulatorID string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_tracked_accumulators_owner,priority:2"`
	Snapshot      datatypes.JSON `gorm:"type:jsonb;not null"`

	Stake decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	// LastLegDate is the scheduled time of the latest leg; the accumulator is
	// settleable only after this plus the typical event duration.
	LastLegDate time.Time `gorm:"type:timestamptz;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TrackedAccumulator) TableName() string {
	return "tracked_accumulators"
}
