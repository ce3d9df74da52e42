package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/cache"
	"betledger/internal/config"
	"betledger/internal/finance"
	"betledger/internal/models"
	"betledger/internal/normalize"
	"betledger/internal/oracle"
	"betledger/internal/repository"
)

// ErrPassInFlight is returned by TryRun while a reconciliation pass is
// already running.
var ErrPassInFlight = errors.New("reconciliation pass already in flight")

const (
	stateIdle int32 = iota
	stateRunning
)

// maxRetryBackoff caps the unresolved-retry backoff so a long-stuck item is
// still rechecked at least daily until it hits the attempt ceiling.
const maxRetryBackoff = 24 * time.Hour

// ReconcileService settles pending bets against the oracle in batches.
// Only one pass runs at a time; overlapping triggers are rejected, never
// queued.
type ReconcileService struct {
	Repo     repository.Repository
	Cache    *cache.Store
	Oracle   oracle.Querier
	Strategy *StrategyService
	Logger   *zap.Logger
	Config   config.ReconcileConfig

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)

	state atomic.Int32
}

func (s *ReconcileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ReconcileService) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if s.Sleep != nil {
		s.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Running reports whether a pass is currently in flight.
func (s *ReconcileService) Running() bool {
	return s.state.Load() == stateRunning
}

// TryRun starts a pass unless one is already running.
func (s *ReconcileService) TryRun(ctx context.Context) error {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrPassInFlight
	}
	defer s.state.Store(stateIdle)

	if s.Config.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.PassTimeout)
		defer cancel()
	}
	return s.runPass(ctx)
}

func (s *ReconcileService) runPass(ctx context.Context) error {
	if s == nil || s.Repo == nil || s.Oracle == nil || s.Cache == nil {
		return nil
	}
	start := s.now()

	// Page through the whole tracked set: a single capped list would leave
	// everything past the cap permanently unreconciled.
	pageSize := s.Config.ScanPageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	var predictions []models.TrackedPrediction
	for offset := 0; ; offset += pageSize {
		page, err := s.Repo.ListTrackedPredictions(ctx, repository.ListTrackedParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return classifyStoreError(err)
		}
		predictions = append(predictions, page...)
		if len(page) < pageSize {
			break
		}
	}
	var accumulators []models.TrackedAccumulator
	for offset := 0; ; offset += pageSize {
		page, err := s.Repo.ListTrackedAccumulators(ctx, repository.ListTrackedParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return classifyStoreError(err)
		}
		accumulators = append(accumulators, page...)
		if len(page) < pageSize {
			break
		}
	}

	predsByUser := map[string][]models.TrackedPrediction{}
	for _, row := range predictions {
		predsByUser[row.UserID] = append(predsByUser[row.UserID], row)
	}
	accsByUser := map[string][]models.TrackedAccumulator{}
	for _, row := range accumulators {
		accsByUser[row.UserID] = append(accsByUser[row.UserID], row)
	}

	users := map[string]struct{}{}
	for u := range predsByUser {
		users[u] = struct{}{}
	}
	for u := range accsByUser {
		users[u] = struct{}{}
	}

	for userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.reconcilePredictions(ctx, userID, predsByUser[userID]); err != nil && s.Logger != nil {
			s.Logger.Warn("reconcile: prediction pass failed for user",
				zap.String("user_id", userID), zap.Error(err))
		}
		if err := s.reconcileAccumulators(ctx, userID, accsByUser[userID]); err != nil && s.Logger != nil {
			s.Logger.Warn("reconcile: accumulator pass failed for user",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	if s.Logger != nil {
		s.Logger.Info("reconcile: pass complete",
			zap.Int("predictions", len(predictions)),
			zap.Int("accumulators", len(accumulators)),
			zap.Duration("elapsed", s.now().Sub(start)))
	}
	return nil
}

// retryDue reports whether an unresolved record should be queried again:
// exponential backoff on the retry TTL, hard stop at the attempt ceiling.
func (s *ReconcileService) retryDue(attempts int, checkedAt time.Time) bool {
	maxAttempts := s.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if attempts >= maxAttempts {
		return false
	}
	retryTTL := s.Config.RetryTTL
	if retryTTL <= 0 {
		retryTTL = time.Hour
	}
	backoff := retryTTL
	for i := 1; i < attempts && backoff < maxRetryBackoff; i++ {
		backoff *= 2
	}
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	return s.now().Sub(checkedAt) >= backoff
}

func (s *ReconcileService) settlementTTL() time.Duration {
	if s.Config.SettlementTTL > 0 {
		return s.Config.SettlementTTL
	}
	return cache.SettlementTTL
}

func (s *ReconcileService) eventConcluded(eventEnd time.Time) bool {
	duration := s.Config.EventDuration
	if duration <= 0 {
		duration = 150 * time.Minute
	}
	return s.now().After(eventEnd.Add(duration))
}

func (s *ReconcileService) reconcilePredictions(ctx context.Context, userID string, rows []models.TrackedPrediction) error {
	if len(rows) == 0 {
		return nil
	}
	records, err := loadPredictionRecords(ctx, s.Cache, userID, s.settlementTTL())
	if err != nil {
		return classifyStoreError(err)
	}

	var queries []oracle.ScoreQuery
	for _, row := range rows {
		if !s.eventConcluded(row.MatchDate) {
			continue
		}
		if rec, ok := records[row.PredictionID]; ok {
			if rec.Result.Settled() || !s.retryDue(rec.Attempts, rec.CheckedAt) {
				continue
			}
		}
		var snapshot models.Prediction
		if err := json.Unmarshal(row.Snapshot, &snapshot); err != nil {
			continue
		}
		queries = append(queries, oracle.ScoreQuery{
			ID:             row.PredictionID,
			TeamA:          snapshot.TeamA,
			TeamB:          snapshot.TeamB,
			MatchDate:      snapshot.MatchDate,
			RecommendedBet: snapshot.RecommendedBet,
		})
	}
	if len(queries) == 0 {
		return nil
	}

	batchSize := s.Config.PredictionBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	changed := false
	for start := 0; start < len(queries); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 {
			s.sleep(ctx, s.Config.BatchDelay)
		}
		chunk := queries[start:min(start+batchSize, len(queries))]

		raw, err := s.Oracle.ScoreBatch(ctx, chunk)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("reconcile: score batch failed",
					zap.String("user_id", userID),
					zap.Int("batch_size", len(chunk)),
					zap.Error(err))
			}
			continue
		}
		results := normalize.Decode[[]oracle.ScoreResult](raw, s.Logger)

		byID := map[string]oracle.ScoreResult{}
		if results != nil {
			for _, r := range *results {
				byID[r.ID] = r
			}
		}
		// Every queried item gets a record: items the oracle omitted are
		// synthesized as unresolved so they back off instead of being
		// re-queried every pass.
		for _, q := range chunk {
			prev := records[q.ID]
			rec := PredictionRecord{CheckedAt: s.now().UTC()}
			if r, ok := byID[q.ID]; ok && r.BetOutcome != nil {
				rec.Result = models.PredictionResult{FinalScore: r.FinalScore, Outcome: r.BetOutcome}
			} else {
				rec.Attempts = prev.Attempts + 1
			}
			records[q.ID] = rec
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return classifyStoreError(s.Cache.Set(ctx, cache.SettlementKey(userID), records))
}

func (s *ReconcileService) reconcileAccumulators(ctx context.Context, userID string, rows []models.TrackedAccumulator) error {
	if len(rows) == 0 {
		return nil
	}
	records, err := loadAccumulatorRecords(ctx, s.Cache, userID, s.settlementTTL())
	if err != nil {
		return classifyStoreError(err)
	}

	snapshots := map[string]models.Accumulator{}
	stakes := map[string]decimal.Decimal{}
	var queries []oracle.AccumulatorQuery
	for _, row := range rows {
		if !s.eventConcluded(row.LastLegDate) {
			continue
		}
		if rec, ok := records[row.AccumulatorID]; ok {
			if rec.Result.Settled() || !s.retryDue(rec.Attempts, rec.CheckedAt) {
				continue
			}
		}
		var snapshot models.Accumulator
		if err := json.Unmarshal(row.Snapshot, &snapshot); err != nil {
			continue
		}
		legs := make([]oracle.LegQuery, 0, len(snapshot.Games))
		for _, g := range snapshot.Games {
			legs = append(legs, oracle.LegQuery{
				TeamA:      g.TeamA,
				TeamB:      g.TeamB,
				Prediction: g.Prediction,
				MatchDate:  g.MatchDate,
			})
		}
		snapshots[row.AccumulatorID] = snapshot
		stakes[row.AccumulatorID] = row.Stake
		queries = append(queries, oracle.AccumulatorQuery{ID: row.AccumulatorID, Legs: legs})
	}
	if len(queries) == 0 {
		return nil
	}

	batchSize := s.Config.AccumulatorBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	type settledBet struct {
		snapshot models.Accumulator
		stake    decimal.Decimal
		outcome  models.Outcome
	}
	var settled []settledBet
	changed := false
	for start := 0; start < len(queries); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 {
			s.sleep(ctx, s.Config.BatchDelay)
		}
		chunk := queries[start:min(start+batchSize, len(queries))]

		raw, err := s.Oracle.AccumulatorBatch(ctx, chunk)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("reconcile: accumulator batch failed",
					zap.String("user_id", userID),
					zap.Int("batch_size", len(chunk)),
					zap.Error(err))
			}
			continue
		}
		verdicts := normalize.Decode[[]oracle.AccumulatorVerdict](raw, s.Logger)

		byID := map[string]oracle.AccumulatorVerdict{}
		if verdicts != nil {
			for _, v := range *verdicts {
				byID[v.ID] = v
			}
		}
		for _, q := range chunk {
			prev := records[q.ID]
			rec := AccumulatorRecord{CheckedAt: s.now().UTC()}
			verdict, ok := byID[q.ID]
			// The oracle's own final outcome is advisory: the settled state
			// is always rederived from the legs.
			outcome := models.DeriveFinalOutcome(verdict.LegResults)
			if ok && outcome != nil {
				rec.Result = models.AccumulatorResult{FinalOutcome: outcome, LegResults: verdict.LegResults}
				settled = append(settled, settledBet{snapshots[q.ID], stakes[q.ID], *outcome})
			} else {
				if ok {
					rec.Result.LegResults = verdict.LegResults
				}
				rec.Attempts = prev.Attempts + 1
			}
			records[q.ID] = rec
			changed = true
		}
	}

	if !changed {
		return nil
	}
	// Settled records must be durable before their outcomes reach the
	// strategy aggregates: if the write fails the next pass re-settles the
	// same bets, and feeding them back now would count them twice.
	if err := s.Cache.Set(ctx, cache.AccumulatorKey(userID), records); err != nil {
		return classifyStoreError(err)
	}
	for _, bet := range settled {
		s.recordStrategyOutcome(ctx, userID, bet.snapshot, bet.stake, bet.outcome)
	}
	return nil
}

// recordStrategyOutcome feeds a newly settled accumulator back into the
// strategy that generated it, if any.
func (s *ReconcileService) recordStrategyOutcome(ctx context.Context, userID string, snapshot models.Accumulator, stake decimal.Decimal, outcome models.Outcome) {
	if s.Strategy == nil || snapshot.StrategyID == 0 {
		return
	}
	pnl := finance.ItemPnL(stake, decimal.NewFromFloat(snapshot.CombinedOdds), &outcome)
	if err := s.Strategy.RecordOutcome(ctx, snapshot.StrategyID, outcome == models.OutcomeWon, pnl); err != nil && s.Logger != nil {
		s.Logger.Warn("reconcile: strategy outcome not recorded",
			zap.String("user_id", userID),
			zap.Uint64("strategy_id", snapshot.StrategyID),
			zap.Error(err))
	}
}
