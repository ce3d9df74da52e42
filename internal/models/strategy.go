package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Strategy is the mutable container for a versioned betting strategy.
// Aggregate stats (pnl/wins/losses) are only ever changed through
// StrategyService.RecordOutcome.
type Strategy struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;index"`

	Name        string `gorm:"type:varchar(100);not null"`
	Description string `gorm:"type:text"`

	PnL    decimal.Decimal `gorm:"column:pnl;type:numeric(20,2);not null;default:0"`
	Wins   int             `gorm:"not null;default:0"`
	Losses int             `gorm:"not null;default:0"`

	Archived bool `gorm:"not null;default:false;index"`
	Promoted bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Strategy) TableName() string {
	return "strategies"
}
