package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"betledger/internal/cache"
	"betledger/internal/config"
	"betledger/internal/generator"
	"betledger/internal/models"
	"betledger/internal/normalize"
)

// ErrEmptyFeed is returned when the generation service declined to produce
// recommendations (a refusal, not a transport failure).
var ErrEmptyFeed = errors.New("no recommendations available")

// FeedService serves the recommendation feed: cached per user for a short
// window, refreshed from the generation service on miss or on demand.
type FeedService struct {
	Cache  *cache.Store
	Source generator.Source
	Logger *zap.Logger
	Config config.FeedConfig
}

func (s *FeedService) cacheTTL() time.Duration {
	if s.Config.CacheTTL > 0 {
		return s.Config.CacheTTL
	}
	return cache.DefaultTTL
}

// Feed returns the user's current recommendations. refresh forces a fetch
// even when the cache is fresh.
func (s *FeedService) Feed(ctx context.Context, userID string, refresh bool) (*models.Feed, error) {
	if s == nil || s.Source == nil {
		return nil, ErrEmptyFeed
	}
	if !refresh && s.Cache != nil {
		raw, ok, err := s.Cache.Get(ctx, cache.FeedKey(userID), s.cacheTTL())
		if err != nil {
			return nil, classifyStoreError(err)
		}
		if ok {
			var feed models.Feed
			if err := json.Unmarshal(raw, &feed); err == nil {
				return &feed, nil
			}
			// Unreadable cache entry: fall through to a fresh fetch.
			_ = s.Cache.Delete(ctx, cache.FeedKey(userID))
		}
	}

	raw, err := s.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	feed := normalize.Decode[models.Feed](raw, s.Logger)
	if feed == nil {
		return nil, ErrEmptyFeed
	}
	backfillIDs(feed)

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, cache.FeedKey(userID), feed); err != nil && s.Logger != nil {
			s.Logger.Warn("feed: cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return feed, nil
}

// Invalidate drops the user's cached feed.
func (s *FeedService) Invalidate(ctx context.Context, userID string) error {
	if s == nil || s.Cache == nil {
		return nil
	}
	return s.Cache.Delete(ctx, cache.FeedKey(userID))
}

// backfillIDs assigns ids to items the generator returned without one, so
// every recommendation is trackable.
func backfillIDs(feed *models.Feed) {
	for i := range feed.Predictions {
		if strings.TrimSpace(feed.Predictions[i].ID) == "" {
			feed.Predictions[i].ID = uuid.NewString()
		}
	}
	for i := range feed.Accumulators {
		if strings.TrimSpace(feed.Accumulators[i].ID) == "" {
			feed.Accumulators[i].ID = uuid.NewString()
		}
	}
}
