package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"betledger/internal/models"
	"betledger/internal/repository"
)

// StrategyService manages versioned betting strategies. Version content is
// immutable once saved; only the deployed flag moves, and only through the
// transactional deploy path.
type StrategyService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// StrategyView is a strategy hydrated with its deployed version number, or
// zero when nothing is deployed.
type StrategyView struct {
	models.Strategy
	DeployedVersion int `json:"deployedVersion"`
}

// Create makes a new strategy whose initial content becomes version 1,
// deployed immediately.
func (s *StrategyService) Create(ctx context.Context, userID, name, description string, content datatypes.JSON, author string) (*models.Strategy, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("strategy name is required")
	}
	strategy := &models.Strategy{
		UserID:      userID,
		Name:        name,
		Description: description,
		PnL:         decimal.Zero,
	}
	if err := s.Repo.InsertStrategy(ctx, strategy); err != nil {
		return nil, classifyStoreError(err)
	}
	version := &models.StrategyVersion{
		StrategyID:    strategy.ID,
		VersionNumber: 1,
		Content:       content,
		Author:        author,
		Changelog:     "Initial version",
		Deployed:      true,
	}
	if err := s.Repo.InsertStrategyVersion(ctx, version); err != nil {
		return nil, classifyStoreError(err)
	}
	return strategy, nil
}

// SaveVersion appends a new immutable version. It does not deploy.
func (s *StrategyService) SaveVersion(ctx context.Context, userID string, strategyID uint64, content datatypes.JSON, author, changelog string) (*models.StrategyVersion, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	strategy, err := s.Repo.GetStrategyByID(ctx, userID, strategyID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if strategy == nil {
		return nil, ErrNotFound
	}
	last, err := s.Repo.MaxStrategyVersionNumber(ctx, strategyID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	version := &models.StrategyVersion{
		StrategyID:    strategyID,
		VersionNumber: last + 1,
		Content:       content,
		Author:        author,
		Changelog:     changelog,
	}
	if err := s.Repo.InsertStrategyVersion(ctx, version); err != nil {
		return nil, classifyStoreError(err)
	}
	return version, nil
}

// Deploy atomically switches the deployed version. Rolling back is just a
// deploy of an older version number.
func (s *StrategyService) Deploy(ctx context.Context, userID string, strategyID uint64, versionNumber int) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	strategy, err := s.Repo.GetStrategyByID(ctx, userID, strategyID)
	if err != nil {
		return classifyStoreError(err)
	}
	if strategy == nil {
		return ErrNotFound
	}
	err = s.Repo.DeployStrategyVersion(ctx, strategyID, versionNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return classifyStoreError(err)
	}
	if s.Logger != nil {
		s.Logger.Info("strategy: version deployed",
			zap.Uint64("strategy_id", strategyID),
			zap.Int("version", versionNumber))
	}
	return nil
}

// Versions lists a strategy's history, newest first.
func (s *StrategyService) Versions(ctx context.Context, userID string, strategyID uint64) ([]models.StrategyVersion, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	strategy, err := s.Repo.GetStrategyByID(ctx, userID, strategyID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if strategy == nil {
		return nil, ErrNotFound
	}
	versions, err := s.Repo.ListStrategyVersions(ctx, strategyID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return versions, nil
}

// List returns the user's strategies hydrated with their deployed version.
func (s *StrategyService) List(ctx context.Context, userID string, includeArchived bool) ([]StrategyView, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	strategies, err := s.Repo.ListStrategies(ctx, repository.ListStrategiesParams{
		UserID:          userID,
		IncludeArchived: includeArchived,
	})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	views := make([]StrategyView, 0, len(strategies))
	for _, strategy := range strategies {
		view := StrategyView{Strategy: strategy}
		deployed, err := s.Repo.GetDeployedStrategyVersion(ctx, strategy.ID)
		if err != nil {
			return nil, classifyStoreError(err)
		}
		if deployed != nil {
			view.DeployedVersion = deployed.VersionNumber
		}
		views = append(views, view)
	}
	return views, nil
}

// Update changes strategy metadata. Aggregate stats are not updatable here.
func (s *StrategyService) Update(ctx context.Context, userID string, strategyID uint64, name, description *string, archived, promoted *bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	strategy, err := s.Repo.GetStrategyByID(ctx, userID, strategyID)
	if err != nil {
		return classifyStoreError(err)
	}
	if strategy == nil {
		return ErrNotFound
	}
	updates := map[string]any{}
	if name != nil && strings.TrimSpace(*name) != "" {
		updates["name"] = strings.TrimSpace(*name)
	}
	if description != nil {
		updates["description"] = *description
	}
	if archived != nil {
		updates["archived"] = *archived
	}
	if promoted != nil {
		updates["promoted"] = *promoted
	}
	if len(updates) == 0 {
		return nil
	}
	return classifyStoreError(s.Repo.UpdateStrategy(ctx, userID, strategyID, updates))
}

// RecordOutcome folds one settled bet into the strategy's aggregate stats.
func (s *StrategyService) RecordOutcome(ctx context.Context, strategyID uint64, won bool, pnl decimal.Decimal) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	return classifyStoreError(s.Repo.UpdateStrategyOutcome(ctx, strategyID, won, pnl))
}
