package service

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/config"
	"betledger/internal/models"
	"betledger/internal/repository"
)

const settingInitialBudget = "initial_budget"

// SettingsService reads and writes per-user runtime settings. The only
// setting today is the virtual budget every derivation starts from.
type SettingsService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Config config.BudgetConfig
}

// InitialBudget returns the user's configured budget, falling back to the
// service default when the user has never set one.
func (s *SettingsService) InitialBudget(ctx context.Context, userID string) (decimal.Decimal, error) {
	if s == nil {
		return decimal.Zero, nil
	}
	fallback := decimal.NewFromFloat(s.Config.Default)
	if s.Repo == nil {
		return fallback, nil
	}
	setting, err := s.Repo.GetUserSetting(ctx, userID, settingInitialBudget)
	if err != nil {
		return fallback, classifyStoreError(err)
	}
	if setting == nil {
		return fallback, nil
	}
	var budget decimal.Decimal
	if err := json.Unmarshal(setting.Value, &budget); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("settings: unreadable budget value, using default",
				zap.String("user_id", userID), zap.Error(err))
		}
		return fallback, nil
	}
	return budget, nil
}

func (s *SettingsService) SetInitialBudget(ctx context.Context, userID string, budget decimal.Decimal) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if !budget.IsPositive() {
		return ErrInvalidBudget
	}
	value, err := json.Marshal(budget)
	if err != nil {
		return err
	}
	err = s.Repo.UpsertUserSetting(ctx, &models.UserSetting{
		UserID: userID,
		Key:    settingInitialBudget,
		Value:  value,
	})
	return classifyStoreError(err)
}
