package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"betledger/internal/cache"
	"betledger/internal/config"
	"betledger/internal/models"
	"betledger/internal/oracle"
)

type stubOracle struct {
	scoreCalls []int
	accCalls   []int

	scoreFn func(queries []oracle.ScoreQuery) (string, error)
	accFn   func(queries []oracle.AccumulatorQuery) (string, error)
}

func (o *stubOracle) ScoreBatch(_ context.Context, queries []oracle.ScoreQuery) (string, error) {
	o.scoreCalls = append(o.scoreCalls, len(queries))
	if o.scoreFn != nil {
		return o.scoreFn(queries)
	}
	return allWonReply(queries), nil
}

func (o *stubOracle) AccumulatorBatch(_ context.Context, queries []oracle.AccumulatorQuery) (string, error) {
	o.accCalls = append(o.accCalls, len(queries))
	if o.accFn != nil {
		return o.accFn(queries)
	}
	return "null", nil
}

func allWonReply(queries []oracle.ScoreQuery) string {
	results := make([]oracle.ScoreResult, 0, len(queries))
	for _, q := range queries {
		score := "2-1"
		results = append(results, oracle.ScoreResult{
			ID:         q.ID,
			FinalScore: &score,
			BetOutcome: models.OutcomePtr(models.OutcomeWon),
		})
	}
	raw, _ := json.Marshal(results)
	return string(raw)
}

func newReconcileFixture(t *testing.T) (*ReconcileService, *stubRepo, *stubOracle, *time.Time) {
	t.Helper()
	repo := newStubRepo()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	store := cache.New(repo, nil)
	store.Now = func() time.Time { return now }
	orc := &stubOracle{}
	svc := &ReconcileService{
		Repo:   repo,
		Cache:  store,
		Oracle: orc,
		Config: config.ReconcileConfig{
			PredictionBatchSize:  20,
			AccumulatorBatchSize: 10,
			EventDuration:        150 * time.Minute,
			MaxAttempts:          5,
			RetryTTL:             time.Hour,
		},
		Now:   func() time.Time { return now },
		Sleep: func(context.Context, time.Duration) {},
	}
	return svc, repo, orc, &now
}

func trackPrediction(t *testing.T, repo *stubRepo, userID, id string, matchDate time.Time) {
	t.Helper()
	snapshot, _ := json.Marshal(models.Prediction{
		ID: id, TeamA: "A", TeamB: "B", MatchDate: matchDate,
		RecommendedBet: "Home Win", Odds: 2.0,
	})
	if err := repo.UpsertTrackedPrediction(context.Background(), &models.TrackedPrediction{
		UserID: userID, PredictionID: id, Snapshot: snapshot,
		Stake: decimal.NewFromInt(10), MatchDate: matchDate,
	}); err != nil {
		t.Fatalf("track: %v", err)
	}
}

func TestTryRun_BatchesPredictions(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	concluded := now.Add(-3 * time.Hour)
	for i := 0; i < 45; i++ {
		trackPrediction(t, repo, "u1", fmt.Sprintf("p%02d", i), concluded)
	}

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(orc.scoreCalls) != 3 {
		t.Fatalf("calls=%v want 3 batches", orc.scoreCalls)
	}
	if orc.scoreCalls[0] != 20 || orc.scoreCalls[1] != 20 || orc.scoreCalls[2] != 5 {
		t.Fatalf("batch sizes=%v", orc.scoreCalls)
	}
}

func TestTryRun_ScansAllPages(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	// A page smaller than the tracked set: the pass must keep listing until
	// the last page or older pending bets never settle.
	svc.Config.ScanPageSize = 2
	concluded := now.Add(-3 * time.Hour)
	for i := 0; i < 5; i++ {
		trackPrediction(t, repo, "u1", fmt.Sprintf("p%02d", i), concluded)
	}

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	queried := 0
	for _, n := range orc.scoreCalls {
		queried += n
	}
	if queried != 5 {
		t.Fatalf("queried=%d want all 5 tracked items", queried)
	}
	records, err := loadPredictionRecords(context.Background(), svc.Cache, "u1", cache.SettlementTTL)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("records=%d want 5", len(records))
	}
}

func TestTryRun_SettledResultsNotRequeried(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	trackPrediction(t, repo, "u1", "p1", now.Add(-3*time.Hour))

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(orc.scoreCalls) != 1 {
		t.Fatalf("calls=%v want 1", orc.scoreCalls)
	}
	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(orc.scoreCalls) != 1 {
		t.Fatalf("calls=%v, settled item was re-queried", orc.scoreCalls)
	}
}

func TestTryRun_PendingEventsNotQueried(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	// Kickoff an hour ago: inside the typical event duration, not settleable.
	trackPrediction(t, repo, "u1", "p1", now.Add(-time.Hour))

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(orc.scoreCalls) != 0 {
		t.Fatalf("calls=%v want none", orc.scoreCalls)
	}
}

func TestTryRun_UnresolvedBacksOff(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	trackPrediction(t, repo, "u1", "p1", now.Add(-3*time.Hour))
	orc.scoreFn = func([]oracle.ScoreQuery) (string, error) {
		return "null", nil // oracle cannot verify anything
	}

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(orc.scoreCalls) != 1 {
		t.Fatalf("calls=%v want 1", orc.scoreCalls)
	}

	// Immediately after, the unresolved record suppresses a retry.
	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(orc.scoreCalls) != 1 {
		t.Fatalf("calls=%v, retried before backoff elapsed", orc.scoreCalls)
	}

	// After the first retry TTL it is eligible again.
	*now = now.Add(61 * time.Minute)
	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(orc.scoreCalls) != 2 {
		t.Fatalf("calls=%v want 2 after backoff", orc.scoreCalls)
	}

	// Second retry needs twice the TTL.
	*now = now.Add(61 * time.Minute)
	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(orc.scoreCalls) != 2 {
		t.Fatalf("calls=%v, doubled backoff not honored", orc.scoreCalls)
	}
}

func TestTryRun_AttemptCeilingStopsRetries(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	svc.Config.MaxAttempts = 2
	trackPrediction(t, repo, "u1", "p1", now.Add(-3*time.Hour))
	orc.scoreFn = func([]oracle.ScoreQuery) (string, error) { return "null", nil }

	for i := 0; i < 5; i++ {
		if err := svc.TryRun(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		*now = now.Add(48 * time.Hour)
	}
	if len(orc.scoreCalls) != 2 {
		t.Fatalf("calls=%v want exactly MaxAttempts", orc.scoreCalls)
	}
}

func TestTryRun_ChunkFailureIsolated(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	concluded := now.Add(-3 * time.Hour)
	for i := 0; i < 40; i++ {
		trackPrediction(t, repo, "u1", fmt.Sprintf("p%02d", i), concluded)
	}
	calls := 0
	orc.scoreFn = func(queries []oracle.ScoreQuery) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("oracle down")
		}
		return allWonReply(queries), nil
	}

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d, failing chunk aborted the pass", calls)
	}

	// The failed chunk carries no records at all and is retried next pass
	// without waiting out a backoff.
	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d want failed chunk retried", calls)
	}
}

func TestTryRun_RejectsOverlappingPass(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	trackPrediction(t, repo, "u1", "p1", now.Add(-3*time.Hour))

	block := make(chan struct{})
	started := make(chan struct{})
	orc.scoreFn = func(queries []oracle.ScoreQuery) (string, error) {
		close(started)
		<-block
		return allWonReply(queries), nil
	}

	done := make(chan error, 1)
	go func() { done <- svc.TryRun(context.Background()) }()
	<-started

	if err := svc.TryRun(context.Background()); !errors.Is(err, ErrPassInFlight) {
		t.Fatalf("err=%v want ErrPassInFlight", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !svc.Running() {
		// After completion the scheduler is idle again.
		if err := svc.TryRun(context.Background()); err != nil {
			t.Fatalf("run after idle: %v", err)
		}
	}
}

func TestTryRun_AccumulatorOutcomeDerivedFromLegs(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	strategySvc := &StrategyService{Repo: repo}
	svc.Strategy = strategySvc

	strategy, err := strategySvc.Create(context.Background(), "u1", "aggressive", "", []byte(`{}`), "tester")
	if err != nil {
		t.Fatalf("create strategy: %v", err)
	}

	legDate := now.Add(-4 * time.Hour)
	snapshot, _ := json.Marshal(models.Accumulator{
		ID: "a1", Name: "Weekend Treble", CombinedOdds: 3.0,
		Games: []models.AccumulatorLeg{
			{TeamA: "A", TeamB: "B", Prediction: "Home Win", MatchDate: legDate},
			{TeamA: "C", TeamB: "D", Prediction: "Over 2.5", MatchDate: legDate},
		},
		StrategyID: strategy.ID,
	})
	if err := repo.UpsertTrackedAccumulator(context.Background(), &models.TrackedAccumulator{
		UserID: "u1", AccumulatorID: "a1", Snapshot: snapshot,
		Stake: decimal.NewFromInt(10), LastLegDate: legDate,
	}); err != nil {
		t.Fatalf("track: %v", err)
	}

	// The oracle claims the accumulator won even though a leg lost; the
	// leg-derived outcome must win.
	orc.accFn = func(queries []oracle.AccumulatorQuery) (string, error) {
		verdicts := []oracle.AccumulatorVerdict{{
			ID:           "a1",
			FinalOutcome: models.OutcomePtr(models.OutcomeWon),
			LegResults: []models.LegResult{
				{TeamA: "A", TeamB: "B", Outcome: models.OutcomePtr(models.OutcomeWon)},
				{TeamA: "C", TeamB: "D", Outcome: models.OutcomePtr(models.OutcomeLost)},
			},
		}}
		raw, _ := json.Marshal(verdicts)
		return string(raw), nil
	}

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	records, err := loadAccumulatorRecords(context.Background(), svc.Cache, "u1", cache.SettlementTTL)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	rec, ok := records["a1"]
	if !ok || rec.Result.FinalOutcome == nil {
		t.Fatalf("record missing or unresolved: %+v", rec)
	}
	if *rec.Result.FinalOutcome != models.OutcomeLost {
		t.Fatalf("outcome=%s want Lost", *rec.Result.FinalOutcome)
	}

	// The loss was folded back into the generating strategy.
	updated, _ := repo.GetStrategyByID(context.Background(), "u1", strategy.ID)
	if updated.Losses != 1 || updated.Wins != 0 {
		t.Fatalf("wins=%d losses=%d", updated.Wins, updated.Losses)
	}
	if !updated.PnL.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("pnl=%s want -10", updated.PnL)
	}
}

func TestTryRun_OutcomeNotDoubleCountedOnCacheFailure(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	strategySvc := &StrategyService{Repo: repo}
	svc.Strategy = strategySvc

	strategy, err := strategySvc.Create(context.Background(), "u1", "steady", "", []byte(`{}`), "")
	if err != nil {
		t.Fatalf("create strategy: %v", err)
	}

	legDate := now.Add(-4 * time.Hour)
	snapshot, _ := json.Marshal(models.Accumulator{
		ID: "a1", CombinedOdds: 3.0,
		Games: []models.AccumulatorLeg{
			{TeamA: "A", TeamB: "B", Prediction: "Home Win", MatchDate: legDate},
		},
		StrategyID: strategy.ID,
	})
	if err := repo.UpsertTrackedAccumulator(context.Background(), &models.TrackedAccumulator{
		UserID: "u1", AccumulatorID: "a1", Snapshot: snapshot,
		Stake: decimal.NewFromInt(10), LastLegDate: legDate,
	}); err != nil {
		t.Fatalf("track: %v", err)
	}
	orc.accFn = func([]oracle.AccumulatorQuery) (string, error) {
		verdicts := []oracle.AccumulatorVerdict{{
			ID: "a1",
			LegResults: []models.LegResult{
				{TeamA: "A", TeamB: "B", Outcome: models.OutcomePtr(models.OutcomeWon)},
			},
		}}
		raw, _ := json.Marshal(verdicts)
		return string(raw), nil
	}

	// First pass settles the bet but cannot persist the record; the next
	// pass re-settles it. The strategy must still see the win exactly once.
	repo.failCacheWrites = 1
	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	updated, _ := repo.GetStrategyByID(context.Background(), "u1", strategy.ID)
	if updated.Wins != 1 {
		t.Fatalf("wins=%d want 1", updated.Wins)
	}
	if !updated.PnL.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("pnl=%s want 20", updated.PnL)
	}
	records, err := loadAccumulatorRecords(context.Background(), svc.Cache, "u1", cache.SettlementTTL)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	if rec := records["a1"]; !rec.Result.Settled() {
		t.Fatalf("record not durable after second pass: %+v", rec)
	}
}

func TestTryRun_OmittedItemsSynthesizedUnresolved(t *testing.T) {
	svc, repo, orc, now := newReconcileFixture(t)
	trackPrediction(t, repo, "u1", "p1", now.Add(-3*time.Hour))
	trackPrediction(t, repo, "u1", "p2", now.Add(-3*time.Hour))

	// Oracle only answers for p1.
	orc.scoreFn = func([]oracle.ScoreQuery) (string, error) {
		score := "1-0"
		raw, _ := json.Marshal([]oracle.ScoreResult{{
			ID: "p1", FinalScore: &score, BetOutcome: models.OutcomePtr(models.OutcomeWon),
		}})
		return string(raw), nil
	}

	if err := svc.TryRun(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	records, err := loadPredictionRecords(context.Background(), svc.Cache, "u1", cache.SettlementTTL)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	if rec := records["p1"]; !rec.Result.Settled() {
		t.Fatalf("p1 not settled: %+v", rec)
	}
	rec, ok := records["p2"]
	if !ok {
		t.Fatalf("p2 has no record")
	}
	if rec.Result.Settled() || rec.Attempts != 1 {
		t.Fatalf("p2=%+v want unresolved attempt 1", rec)
	}
}
