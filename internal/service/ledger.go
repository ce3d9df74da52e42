package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/cache"
	"betledger/internal/config"
	"betledger/internal/finance"
	"betledger/internal/models"
	"betledger/internal/repository"
)

// LedgerService owns the tracked-bet ledger: immutable recommendation
// snapshots plus the stake committed against each. Settlement results live in
// the cache and are merged in at read time.
type LedgerService struct {
	Repo     repository.Repository
	Cache    *cache.Store
	Settings *SettingsService
	Logger   *zap.Logger
	Config   config.LedgerConfig

	// SettlementTTL bounds how long cached results are trusted.
	SettlementTTL time.Duration
}

func (s *LedgerService) settlementTTL() time.Duration {
	if s.SettlementTTL > 0 {
		return s.SettlementTTL
	}
	return cache.SettlementTTL
}

// PredictionEntry is one tracked single bet with its current settlement state.
type PredictionEntry struct {
	Row      models.TrackedPrediction
	Snapshot models.Prediction
	Result   *models.PredictionResult
	PnL      decimal.Decimal
}

// AccumulatorEntry is one tracked multi-leg bet with its settlement state.
type AccumulatorEntry struct {
	Row      models.TrackedAccumulator
	Snapshot models.Accumulator
	Result   *models.AccumulatorResult
	PnL      decimal.Decimal
}

// Stats is the derived financial view for one user.
type Stats struct {
	finance.Summary
	ByBetType []finance.BreakdownRow `json:"byBetType"`
	ByLeague  []finance.BreakdownRow `json:"byLeague"`
}

func (s *LedgerService) TrackPrediction(ctx context.Context, userID string, p models.Prediction, stake decimal.Decimal) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: prediction id", ErrNotFound)
	}
	if !stake.IsPositive() {
		return ErrInvalidStake
	}
	snapshot, err := json.Marshal(p)
	if err != nil {
		return err
	}
	err = s.Repo.UpsertTrackedPrediction(ctx, &models.TrackedPrediction{
		UserID:       userID,
		PredictionID: p.ID,
		Snapshot:     snapshot,
		Stake:        stake,
		MatchDate:    p.MatchDate.UTC(),
	})
	return classifyStoreError(err)
}

func (s *LedgerService) TrackAccumulator(ctx context.Context, userID string, a models.Accumulator, stake decimal.Decimal) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: accumulator id", ErrNotFound)
	}
	if !stake.IsPositive() {
		return ErrInvalidStake
	}
	snapshot, err := json.Marshal(a)
	if err != nil {
		return err
	}
	err = s.Repo.UpsertTrackedAccumulator(ctx, &models.TrackedAccumulator{
		UserID:        userID,
		AccumulatorID: a.ID,
		Snapshot:      snapshot,
		Stake:         stake,
		LastLegDate:   a.LastLegDate().UTC(),
	})
	return classifyStoreError(err)
}

func (s *LedgerService) RemovePrediction(ctx context.Context, userID, predictionID string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	n, err := s.Repo.DeleteTrackedPrediction(ctx, userID, predictionID)
	if err != nil {
		return classifyStoreError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *LedgerService) RemoveAccumulator(ctx context.Context, userID, accumulatorID string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	n, err := s.Repo.DeleteTrackedAccumulator(ctx, userID, accumulatorID)
	if err != nil {
		return classifyStoreError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Predictions lists the user's tracked single bets, newest first, with
// settlement results merged in. Rows whose snapshot no longer decodes are
// logged and skipped rather than failing the whole listing.
func (s *LedgerService) Predictions(ctx context.Context, userID string) ([]PredictionEntry, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	rows, err := s.Repo.ListTrackedPredictions(ctx, repository.ListTrackedParams{UserID: userID, Limit: 500})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	records, err := loadPredictionRecords(ctx, s.Cache, userID, s.settlementTTL())
	if err != nil {
		return nil, classifyStoreError(err)
	}
	entries := make([]PredictionEntry, 0, len(rows))
	for _, row := range rows {
		var snapshot models.Prediction
		if err := json.Unmarshal(row.Snapshot, &snapshot); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("ledger: skipping unreadable prediction snapshot",
					zap.String("prediction_id", row.PredictionID), zap.Error(err))
			}
			continue
		}
		entry := PredictionEntry{Row: row, Snapshot: snapshot, PnL: decimal.Zero}
		if rec, ok := records[row.PredictionID]; ok {
			result := rec.Result
			entry.Result = &result
			entry.PnL = finance.ItemPnL(row.Stake, decimal.NewFromFloat(snapshot.Odds), result.Outcome)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Accumulators is the multi-leg counterpart of Predictions.
func (s *LedgerService) Accumulators(ctx context.Context, userID string) ([]AccumulatorEntry, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	rows, err := s.Repo.ListTrackedAccumulators(ctx, repository.ListTrackedParams{UserID: userID, Limit: 500})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	records, err := loadAccumulatorRecords(ctx, s.Cache, userID, s.settlementTTL())
	if err != nil {
		return nil, classifyStoreError(err)
	}
	entries := make([]AccumulatorEntry, 0, len(rows))
	for _, row := range rows {
		var snapshot models.Accumulator
		if err := json.Unmarshal(row.Snapshot, &snapshot); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("ledger: skipping unreadable accumulator snapshot",
					zap.String("accumulator_id", row.AccumulatorID), zap.Error(err))
			}
			continue
		}
		entry := AccumulatorEntry{Row: row, Snapshot: snapshot, PnL: decimal.Zero}
		if rec, ok := records[row.AccumulatorID]; ok {
			result := rec.Result
			entry.Result = &result
			entry.PnL = finance.ItemPnL(row.Stake, decimal.NewFromFloat(snapshot.CombinedOdds), result.FinalOutcome)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats derives the user's balance and performance from everything tracked.
func (s *LedgerService) Stats(ctx context.Context, userID string) (Stats, error) {
	predictions, err := s.Predictions(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	accumulators, err := s.Accumulators(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	budget := decimal.Zero
	if s.Settings != nil {
		budget, err = s.Settings.InitialBudget(ctx, userID)
		if err != nil {
			return Stats{}, err
		}
	}

	items := make([]finance.Item, 0, len(predictions)+len(accumulators))
	for _, e := range predictions {
		item := finance.Item{
			Stake:   e.Row.Stake,
			Odds:    decimal.NewFromFloat(e.Snapshot.Odds),
			BetType: e.Snapshot.RecommendedBet,
			League:  e.Snapshot.League,
		}
		if e.Result != nil {
			item.Outcome = e.Result.Outcome
		}
		items = append(items, item)
	}
	for _, e := range accumulators {
		item := finance.Item{
			Stake:   e.Row.Stake,
			Odds:    decimal.NewFromFloat(e.Snapshot.CombinedOdds),
			BetType: "Accumulator",
		}
		if e.Result != nil {
			item.Outcome = e.Result.FinalOutcome
		}
		items = append(items, item)
	}

	return Stats{
		Summary:   finance.Compute(budget, items),
		ByBetType: finance.Breakdown(items, finance.ByBetType),
		ByLeague:  finance.Breakdown(items, finance.ByLeague),
	}, nil
}

// Prune drops tracked rows older than the retention window, plus cache rows
// that outlived it. Run from the cleanup cron.
func (s *LedgerService) Prune(ctx context.Context) (int64, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	days := s.Config.RetentionDays
	if days <= 0 {
		days = 30
	}
	retention := time.Duration(days) * 24 * time.Hour
	cutoff := time.Now().UTC().Add(-retention)

	var total int64
	n, err := s.Repo.DeleteTrackedPredictionsBefore(ctx, cutoff)
	if err != nil {
		return total, classifyStoreError(err)
	}
	total += n
	n, err = s.Repo.DeleteTrackedAccumulatorsBefore(ctx, cutoff)
	if err != nil {
		return total, classifyStoreError(err)
	}
	total += n
	if s.Cache != nil {
		n, err = s.Cache.PruneOlderThan(ctx, retention)
		if err != nil {
			return total, classifyStoreError(err)
		}
		total += n
	}
	if s.Logger != nil && total > 0 {
		s.Logger.Info("ledger: pruned expired rows", zap.Int64("rows", total))
	}
	return total, nil
}

// ClearAll wipes one user's tracked bets and their settlement caches.
func (s *LedgerService) ClearAll(ctx context.Context, userID string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if _, err := s.Repo.DeleteTrackedPredictionsByUser(ctx, userID); err != nil {
		return classifyStoreError(err)
	}
	if _, err := s.Repo.DeleteTrackedAccumulatorsByUser(ctx, userID); err != nil {
		return classifyStoreError(err)
	}
	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, cache.SettlementKey(userID)); err != nil {
			return classifyStoreError(err)
		}
		if err := s.Cache.Delete(ctx, cache.AccumulatorKey(userID)); err != nil {
			return classifyStoreError(err)
		}
	}
	return nil
}
