package service

import (
	"context"
	"encoding/json"
	"time"

	"betledger/internal/cache"
	"betledger/internal/models"
)

// PredictionRecord is one cached settlement lookup for a single bet. An
// unresolved record (both result fields nil) is retried with backoff until
// Attempts reaches the configured ceiling, then kept as final.
type PredictionRecord struct {
	Result    models.PredictionResult `json:"result"`
	Attempts  int                     `json:"attempts,omitempty"`
	CheckedAt time.Time               `json:"checkedAt"`
}

// AccumulatorRecord is the accumulator counterpart.
type AccumulatorRecord struct {
	Result    models.AccumulatorResult `json:"result"`
	Attempts  int                      `json:"attempts,omitempty"`
	CheckedAt time.Time                `json:"checkedAt"`
}

func loadPredictionRecords(ctx context.Context, store *cache.Store, userID string, ttl time.Duration) (map[string]PredictionRecord, error) {
	raw, ok, err := store.Get(ctx, cache.SettlementKey(userID), ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]PredictionRecord{}, nil
	}
	var records map[string]PredictionRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		// A corrupt cache entry is recoverable: drop it and re-settle.
		_ = store.Delete(ctx, cache.SettlementKey(userID))
		return map[string]PredictionRecord{}, nil
	}
	if records == nil {
		records = map[string]PredictionRecord{}
	}
	return records, nil
}

func loadAccumulatorRecords(ctx context.Context, store *cache.Store, userID string, ttl time.Duration) (map[string]AccumulatorRecord, error) {
	raw, ok, err := store.Get(ctx, cache.AccumulatorKey(userID), ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]AccumulatorRecord{}, nil
	}
	var records map[string]AccumulatorRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		_ = store.Delete(ctx, cache.AccumulatorKey(userID))
		return map[string]AccumulatorRecord{}, nil
	}
	if records == nil {
		records = map[string]AccumulatorRecord{}
	}
	return records, nil
}
