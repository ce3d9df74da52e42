package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"betledger/internal/models"
	"betledger/internal/repository"
)

// stubRepo is a full in-memory Repository for service tests.
type stubRepo struct {
	predictions  []models.TrackedPrediction
	accumulators []models.TrackedAccumulator
	cacheEntries map[string]models.CacheEntry
	strategies   []models.Strategy
	versions     []models.StrategyVersion
	settings     map[string]models.UserSetting

	nextID uint64

	failWith error

	// failCacheWrites fails the next N cache upserts only, for exercising
	// partial-persistence paths.
	failCacheWrites int
}

var _ repository.Repository = (*stubRepo)(nil)

func newStubRepo() *stubRepo {
	return &stubRepo{
		cacheEntries: map[string]models.CacheEntry{},
		settings:     map[string]models.UserSetting{},
	}
}

func (r *stubRepo) id() uint64 {
	r.nextID++
	return r.nextID
}

func (r *stubRepo) InTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	if r.failWith != nil {
		return r.failWith
	}
	return fn(nil)
}

func (r *stubRepo) UpsertTrackedPrediction(_ context.Context, item *models.TrackedPrediction) error {
	if r.failWith != nil {
		return r.failWith
	}
	for i := range r.predictions {
		if r.predictions[i].UserID == item.UserID && r.predictions[i].PredictionID == item.PredictionID {
			item.ID = r.predictions[i].ID
			r.predictions[i] = *item
			return nil
		}
	}
	item.ID = r.id()
	r.predictions = append(r.predictions, *item)
	return nil
}

func (r *stubRepo) ListTrackedPredictions(_ context.Context, params repository.ListTrackedParams) ([]models.TrackedPrediction, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []models.TrackedPrediction
	for _, p := range r.predictions {
		if params.UserID == "" || p.UserID == params.UserID {
			out = append(out, p)
		}
	}
	return pageTracked(out, params), nil
}

// pageTracked applies Offset/Limit the way the real store does.
func pageTracked[T any](rows []T, params repository.ListTrackedParams) []T {
	if params.Offset > 0 {
		if params.Offset >= len(rows) {
			return nil
		}
		rows = rows[params.Offset:]
	}
	if params.Limit > 0 && len(rows) > params.Limit {
		rows = rows[:params.Limit]
	}
	return rows
}

func (r *stubRepo) DeleteTrackedPrediction(_ context.Context, userID, predictionID string) (int64, error) {
	if r.failWith != nil {
		return 0, r.failWith
	}
	var kept []models.TrackedPrediction
	var n int64
	for _, p := range r.predictions {
		if p.UserID == userID && p.PredictionID == predictionID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.predictions = kept
	return n, nil
}

func (r *stubRepo) DeleteTrackedPredictionsBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []models.TrackedPrediction
	var n int64
	for _, p := range r.predictions {
		if p.MatchDate.Before(before) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.predictions = kept
	return n, nil
}

func (r *stubRepo) DeleteTrackedPredictionsByUser(_ context.Context, userID string) (int64, error) {
	var kept []models.TrackedPrediction
	var n int64
	for _, p := range r.predictions {
		if p.UserID == userID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.predictions = kept
	return n, nil
}

func (r *stubRepo) UpsertTrackedAccumulator(_ context.Context, item *models.TrackedAccumulator) error {
	if r.failWith != nil {
		return r.failWith
	}
	for i := range r.accumulators {
		if r.accumulators[i].UserID == item.UserID && r.accumulators[i].AccumulatorID == item.AccumulatorID {
			item.ID = r.accumulators[i].ID
			r.accumulators[i] = *item
			return nil
		}
	}
	item.ID = r.id()
	r.accumulators = append(r.accumulators, *item)
	return nil
}

func (r *stubRepo) ListTrackedAccumulators(_ context.Context, params repository.ListTrackedParams) ([]models.TrackedAccumulator, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []models.TrackedAccumulator
	for _, a := range r.accumulators {
		if params.UserID == "" || a.UserID == params.UserID {
			out = append(out, a)
		}
	}
	return pageTracked(out, params), nil
}

func (r *stubRepo) DeleteTrackedAccumulator(_ context.Context, userID, accumulatorID string) (int64, error) {
	var kept []models.TrackedAccumulator
	var n int64
	for _, a := range r.accumulators {
		if a.UserID == userID && a.AccumulatorID == accumulatorID {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.accumulators = kept
	return n, nil
}

func (r *stubRepo) DeleteTrackedAccumulatorsBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []models.TrackedAccumulator
	var n int64
	for _, a := range r.accumulators {
		if a.LastLegDate.Before(before) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.accumulators = kept
	return n, nil
}

func (r *stubRepo) DeleteTrackedAccumulatorsByUser(_ context.Context, userID string) (int64, error) {
	var kept []models.TrackedAccumulator
	var n int64
	for _, a := range r.accumulators {
		if a.UserID == userID {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.accumulators = kept
	return n, nil
}

func (r *stubRepo) GetCacheEntry(_ context.Context, key string) (*models.CacheEntry, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	entry, ok := r.cacheEntries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *stubRepo) UpsertCacheEntry(_ context.Context, item *models.CacheEntry) error {
	if r.failWith != nil {
		return r.failWith
	}
	if r.failCacheWrites > 0 {
		r.failCacheWrites--
		return errors.New("dial tcp: connection refused")
	}
	r.cacheEntries[item.Key] = *item
	return nil
}

func (r *stubRepo) DeleteCacheEntry(_ context.Context, key string) error {
	delete(r.cacheEntries, key)
	return nil
}

func (r *stubRepo) DeleteCacheEntriesBefore(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for key, entry := range r.cacheEntries {
		if entry.Timestamp.Before(before) {
			delete(r.cacheEntries, key)
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) ClearCacheEntries(_ context.Context) (int64, error) {
	n := int64(len(r.cacheEntries))
	r.cacheEntries = map[string]models.CacheEntry{}
	return n, nil
}

func (r *stubRepo) InsertStrategy(_ context.Context, item *models.Strategy) error {
	if r.failWith != nil {
		return r.failWith
	}
	item.ID = r.id()
	r.strategies = append(r.strategies, *item)
	return nil
}

func (r *stubRepo) GetStrategyByID(_ context.Context, userID string, id uint64) (*models.Strategy, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, s := range r.strategies {
		if s.UserID == userID && s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) ListStrategies(_ context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	var out []models.Strategy
	for _, s := range r.strategies {
		if params.UserID != "" && s.UserID != params.UserID {
			continue
		}
		if !params.IncludeArchived && s.Archived {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *stubRepo) UpdateStrategy(_ context.Context, userID string, id uint64, updates map[string]any) error {
	for i := range r.strategies {
		if r.strategies[i].UserID != userID || r.strategies[i].ID != id {
			continue
		}
		if v, ok := updates["name"].(string); ok {
			r.strategies[i].Name = v
		}
		if v, ok := updates["description"].(string); ok {
			r.strategies[i].Description = v
		}
		if v, ok := updates["archived"].(bool); ok {
			r.strategies[i].Archived = v
		}
		if v, ok := updates["promoted"].(bool); ok {
			r.strategies[i].Promoted = v
		}
	}
	return nil
}

func (r *stubRepo) UpdateStrategyOutcome(_ context.Context, id uint64, won bool, pnl decimal.Decimal) error {
	if r.failWith != nil {
		return r.failWith
	}
	for i := range r.strategies {
		if r.strategies[i].ID != id {
			continue
		}
		r.strategies[i].PnL = r.strategies[i].PnL.Add(pnl)
		if won {
			r.strategies[i].Wins++
		} else {
			r.strategies[i].Losses++
		}
	}
	return nil
}

func (r *stubRepo) InsertStrategyVersion(_ context.Context, item *models.StrategyVersion) error {
	if r.failWith != nil {
		return r.failWith
	}
	item.ID = r.id()
	r.versions = append(r.versions, *item)
	return nil
}

func (r *stubRepo) ListStrategyVersions(_ context.Context, strategyID uint64) ([]models.StrategyVersion, error) {
	var out []models.StrategyVersion
	for _, v := range r.versions {
		if v.StrategyID == strategyID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (r *stubRepo) GetStrategyVersion(_ context.Context, strategyID uint64, versionNumber int) (*models.StrategyVersion, error) {
	for _, v := range r.versions {
		if v.StrategyID == strategyID && v.VersionNumber == versionNumber {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) GetDeployedStrategyVersion(_ context.Context, strategyID uint64) (*models.StrategyVersion, error) {
	for _, v := range r.versions {
		if v.StrategyID == strategyID && v.Deployed {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) MaxStrategyVersionNumber(_ context.Context, strategyID uint64) (int, error) {
	maxN := 0
	for _, v := range r.versions {
		if v.StrategyID == strategyID && v.VersionNumber > maxN {
			maxN = v.VersionNumber
		}
	}
	return maxN, nil
}

func (r *stubRepo) DeployStrategyVersion(_ context.Context, strategyID uint64, versionNumber int) error {
	if r.failWith != nil {
		return r.failWith
	}
	target := -1
	for i := range r.versions {
		if r.versions[i].StrategyID == strategyID && r.versions[i].VersionNumber == versionNumber {
			target = i
		}
	}
	if target == -1 {
		return gorm.ErrRecordNotFound
	}
	for i := range r.versions {
		if r.versions[i].StrategyID == strategyID {
			r.versions[i].Deployed = false
		}
	}
	r.versions[target].Deployed = true
	return nil
}

func (r *stubRepo) GetUserSetting(_ context.Context, userID, key string) (*models.UserSetting, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	setting, ok := r.settings[userID+"/"+key]
	if !ok {
		return nil, nil
	}
	return &setting, nil
}

func (r *stubRepo) UpsertUserSetting(_ context.Context, item *models.UserSetting) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.settings[item.UserID+"/"+item.Key] = *item
	return nil
}
