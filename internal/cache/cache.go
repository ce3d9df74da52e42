// Package cache is a durable TTL cache over the cache_entries table. Values
// are opaque JSON; expiry is decided at read time against the TTL the caller
// passes, so the same row can serve callers with different freshness needs.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"betledger/internal/models"
	"betledger/internal/repository"
)

const (
	// DefaultTTL bounds how long generated feed data stays fresh.
	DefaultTTL = 15 * time.Minute
	// SettlementTTL keeps settled results for the full retention window.
	SettlementTTL = 30 * 24 * time.Hour
)

type Store struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func New(repo repository.Repository, logger *zap.Logger) *Store {
	return &Store{Repo: repo, Logger: logger, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get returns the cached value under key if it was written within ttl.
// ok=false covers both a missing row and an expired one; expired rows are
// deleted on the way out.
func (s *Store) Get(ctx context.Context, key string, ttl time.Duration) (json.RawMessage, bool, error) {
	entry, err := s.Repo.GetCacheEntry(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	if s.now().Sub(entry.Timestamp) > ttl {
		if err := s.Repo.DeleteCacheEntry(ctx, key); err != nil && s.Logger != nil {
			s.Logger.Warn("cache: failed to evict expired entry",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false, nil
	}
	return json.RawMessage(entry.Data), true, nil
}

// Set stores value under key, replacing any previous entry and resetting its
// write timestamp.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Repo.UpsertCacheEntry(ctx, &models.CacheEntry{
		Key:       key,
		Data:      data,
		Timestamp: s.now().UTC(),
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.Repo.DeleteCacheEntry(ctx, key)
}

// Clear drops every cache row. Used by the reset endpoint.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.Repo.ClearCacheEntries(ctx)
}

// PruneOlderThan removes rows whose write timestamp predates maxAge,
// regardless of what TTL readers would apply.
func (s *Store) PruneOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.Repo.DeleteCacheEntriesBefore(ctx, s.now().Add(-maxAge).UTC())
}

// Cache key layout. Settlement keys are per-user so one user's lookups never
// leak into another's view.

func FeedKey(userID string) string {
	return "feed:" + userID
}

func SettlementKey(userID string) string {
	return "settlement:predictions:" + userID
}

func AccumulatorKey(userID string) string {
	return "settlement:accumulators:" + userID
}
