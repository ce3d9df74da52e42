package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"betledger/internal/models"
	"betledger/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Tracked predictions -----------------------------------------------------

func (s *Store) UpsertTrackedPrediction(ctx context.Context, item *models.TrackedPrediction) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.UserID) == "" || strings.TrimSpace(item.PredictionID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "prediction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"snapshot",
			"stake",
			"match_date",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListTrackedPredictions(ctx context.Context, params repository.ListTrackedParams) ([]models.TrackedPrediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TrackedPrediction{})
	if strings.TrimSpace(params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(params.UserID))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.TrackedPrediction
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteTrackedPrediction(ctx context.Context, userID, predictionID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("prediction_id = ?", predictionID).
		Delete(&models.TrackedPrediction{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteTrackedPredictionsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil || before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("match_date < ?", before).
		Delete(&models.TrackedPrediction{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteTrackedPredictionsByUser(ctx context.Context, userID string) (int64, error) {
	if s == nil || s.db == nil || strings.TrimSpace(userID) == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.TrackedPrediction{})
	return res.RowsAffected, res.Error
}

// --- Tracked accumulators ----------------------------------------------------

func (s *Store) UpsertTrackedAccumulator(ctx context.Context, item *models.TrackedAccumulator) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.UserID) == "" || strings.TrimSpace(item.AccumulatorID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "accumulator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"snapshot",
			"stake",
			"last_leg_date",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListTrackedAccumulators(ctx context.Context, params repository.ListTrackedParams) ([]models.TrackedAccumulator, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TrackedAccumulator{})
	if strings.TrimSpace(params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(params.UserID))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.TrackedAccumulator
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteTrackedAccumulator(ctx context.Context, userID, accumulatorID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("accumulator_id = ?", accumulatorID).
		Delete(&models.TrackedAccumulator{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteTrackedAccumulatorsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil || before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("last_leg_date < ?", before).
		Delete(&models.TrackedAccumulator{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteTrackedAccumulatorsByUser(ctx context.Context, userID string) (int64, error) {
	if s == nil || s.db == nil || strings.TrimSpace(userID) == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.TrackedAccumulator{})
	return res.RowsAffected, res.Error
}

// --- Cache entries -----------------------------------------------------------

func (s *Store) GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.CacheEntry
	err := s.db.WithContext(ctx).
		Where("key = ?", key).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertCacheEntry(ctx context.Context, item *models.CacheEntry) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Key) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"data",
			"timestamp",
		}),
	}).Create(item).Error
}

func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&models.CacheEntry{}).Error
}

func (s *Store) DeleteCacheEntriesBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil || before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}

func (s *Store) ClearCacheEntries(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}

// --- Strategies --------------------------------------------------------------

func (s *Store) InsertStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetStrategyByID(ctx context.Context, userID string, id uint64) (*models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Strategy
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Strategy{})
	if strings.TrimSpace(params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(params.UserID))
	}
	if !params.IncludeArchived {
		query = query.Where("archived = ?", false)
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Strategy
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateStrategy(ctx context.Context, userID string, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&models.Strategy{}).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) UpdateStrategyOutcome(ctx context.Context, id uint64, won bool, pnl decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	updates := map[string]any{
		"pnl":        gorm.Expr("pnl + ?", pnl),
		"updated_at": time.Now().UTC(),
	}
	if won {
		updates["wins"] = gorm.Expr("wins + 1")
	} else {
		updates["losses"] = gorm.Expr("losses + 1")
	}
	return s.db.WithContext(ctx).
		Model(&models.Strategy{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// --- Strategy versions -------------------------------------------------------

func (s *Store) InsertStrategyVersion(ctx context.Context, item *models.StrategyVersion) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListStrategyVersions(ctx context.Context, strategyID uint64) ([]models.StrategyVersion, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.StrategyVersion
	if err := s.db.WithContext(ctx).
		Model(&models.StrategyVersion{}).
		Where("strategy_id = ?", strategyID).
		Order("version_number desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetStrategyVersion(ctx context.Context, strategyID uint64, versionNumber int) (*models.StrategyVersion, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.StrategyVersion
	err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Where("version_number = ?", versionNumber).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetDeployedStrategyVersion(ctx context.Context, strategyID uint64) (*models.StrategyVersion, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.StrategyVersion
	err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Where("deployed = ?", true).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) MaxStrategyVersionNumber(ctx context.Context, strategyID uint64) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var max int
	err := s.db.WithContext(ctx).
		Model(&models.StrategyVersion{}).
		Where("strategy_id = ?", strategyID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (s *Store) DeployStrategyVersion(ctx context.Context, strategyID uint64, versionNumber int) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.StrategyVersion{}).
			Where("strategy_id = ?", strategyID).
			Where("deployed = ?", true).
			Update("deployed", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.StrategyVersion{}).
			Where("strategy_id = ?", strategyID).
			Where("version_number = ?", versionNumber).
			Update("deployed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// --- User settings -----------------------------------------------------------

func (s *Store) GetUserSetting(ctx context.Context, userID, key string) (*models.UserSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.UserSetting
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("key = ?", key).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertUserSetting(ctx context.Context, item *models.UserSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.UserID) == "" || strings.TrimSpace(item.Key) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
