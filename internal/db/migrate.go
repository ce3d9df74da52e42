package db

import (
	"betledger/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.TrackedPrediction{},
		&models.TrackedAccumulator{},
		&models.CacheEntry{},
		&models.Strategy{},
		&models.StrategyVersion{},
		&models.UserSetting{},
	)
}
