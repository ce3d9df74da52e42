package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TrackedPrediction is a user's virtual single bet: the immutable recommendation
// snapshot plus the stake committed against it.
type TrackedPrediction struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_tracked_predictions_owner,priority:1"`

	PredictionID string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_tracked_predictions_owner,priority:2"`
	Snapshot     datatypes.JSON `gorm:"type:jsonb;not null"`

	Stake decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	// MatchDate is denormalized from the snapshot so retention pruning and
	// eligibility scans do not need to unpack JSON.
	MatchDate time.Time `gorm:"type:timestamptz;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TrackedPrediction) TableName() string {
	return "tracked_predictions"
}
