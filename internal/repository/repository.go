package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"betledger/internal/models"
)

// Repository is the persistence surface for the bet ledger. All methods are
// scoped by user where the data is user-owned; cache entries are shared.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Tracked predictions (single bets).
	UpsertTrackedPrediction(ctx context.Context, item *models.TrackedPrediction) error
	ListTrackedPredictions(ctx context.Context, params ListTrackedParams) ([]models.TrackedPrediction, error)
	DeleteTrackedPrediction(ctx context.Context, userID, predictionID string) (int64, error)
	DeleteTrackedPredictionsBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteTrackedPredictionsByUser(ctx context.Context, userID string) (int64, error)

	// Tracked accumulators (multi-leg bets).
	UpsertTrackedAccumulator(ctx context.Context, item *models.TrackedAccumulator) error
	ListTrackedAccumulators(ctx context.Context, params ListTrackedParams) ([]models.TrackedAccumulator, error)
	DeleteTrackedAccumulator(ctx context.Context, userID, accumulatorID string) (int64, error)
	DeleteTrackedAccumulatorsBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteTrackedAccumulatorsByUser(ctx context.Context, userID string) (int64, error)

	// Durable cache rows.
	GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, item *models.CacheEntry) error
	DeleteCacheEntry(ctx context.Context, key string) error
	DeleteCacheEntriesBefore(ctx context.Context, before time.Time) (int64, error)
	ClearCacheEntries(ctx context.Context) (int64, error)

	// Strategies and their immutable versions.
	InsertStrategy(ctx context.Context, item *models.Strategy) error
	GetStrategyByID(ctx context.Context, userID string, id uint64) (*models.Strategy, error)
	ListStrategies(ctx context.Context, params ListStrategiesParams) ([]models.Strategy, error)
	UpdateStrategy(ctx context.Context, userID string, id uint64, updates map[string]any) error
	UpdateStrategyOutcome(ctx context.Context, id uint64, won bool, pnl decimal.Decimal) error

	InsertStrategyVersion(ctx context.Context, item *models.StrategyVersion) error
	ListStrategyVersions(ctx context.Context, strategyID uint64) ([]models.StrategyVersion, error)
	GetStrategyVersion(ctx context.Context, strategyID uint64, versionNumber int) (*models.StrategyVersion, error)
	GetDeployedStrategyVersion(ctx context.Context, strategyID uint64) (*models.StrategyVersion, error)
	MaxStrategyVersionNumber(ctx context.Context, strategyID uint64) (int, error)
	// DeployStrategyVersion atomically undeploys the current version and marks
	// versionNumber deployed; at most one version per strategy is ever deployed.
	DeployStrategyVersion(ctx context.Context, strategyID uint64, versionNumber int) error

	// Per-user settings.
	GetUserSetting(ctx context.Context, userID, key string) (*models.UserSetting, error)
	UpsertUserSetting(ctx context.Context, item *models.UserSetting) error
}

type ListTrackedParams struct {
	UserID  string
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

type ListStrategiesParams struct {
	UserID          string
	IncludeArchived bool
	Limit           int
	Offset          int
}
