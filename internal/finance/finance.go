// Package finance derives balances and performance stats from tracked bets
// and their settlement results. Everything here is pure: no I/O, no clock,
// decimal arithmetic throughout.
package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"betledger/internal/models"
)

// Item is one tracked bet flattened for derivation.
type Item struct {
	Stake   decimal.Decimal
	Odds    decimal.Decimal
	Outcome *models.Outcome

	// Grouping dimensions for breakdowns.
	BetType string
	League  string
}

// Summary is the derived financial state for one user.
type Summary struct {
	InitialBudget    decimal.Decimal `json:"initialBudget"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	TotalPnL         decimal.Decimal `json:"totalPnL"`
	PendingStake     decimal.Decimal `json:"pendingStake"`

	TotalBets    int `json:"totalBets"`
	PendingCount int `json:"pendingCount"`
	WonCount     int `json:"wonCount"`
	LostCount    int `json:"lostCount"`

	// WinRate and ROI are percentages over settled bets only; zero when
	// nothing has settled.
	WinRate float64 `json:"winRate"`
	ROI     float64 `json:"roi"`

	// OverBudget flags a negative available balance. Callers warn; nothing
	// here blocks further staking.
	OverBudget bool `json:"overBudget"`
}

// BreakdownRow aggregates settled performance for one grouping key.
type BreakdownRow struct {
	Key    string          `json:"key"`
	PnL    decimal.Decimal `json:"pnl"`
	Wins   int             `json:"wins"`
	Losses int             `json:"losses"`
	Staked decimal.Decimal `json:"staked"`
}

// ItemPnL is the realized profit or loss of a single bet: stake*odds-stake
// when won, -stake when lost, zero while pending.
func ItemPnL(stake, odds decimal.Decimal, outcome *models.Outcome) decimal.Decimal {
	if outcome == nil {
		return decimal.Zero
	}
	if *outcome == models.OutcomeWon {
		return stake.Mul(odds).Sub(stake)
	}
	return stake.Neg()
}

// Compute derives the summary for a budget and a set of tracked bets.
// Pending stakes reduce the available balance; settled ones contribute PnL.
func Compute(initialBudget decimal.Decimal, items []Item) Summary {
	out := Summary{
		InitialBudget: initialBudget,
		TotalPnL:      decimal.Zero,
		PendingStake:  decimal.Zero,
		TotalBets:     len(items),
	}
	settledStake := decimal.Zero
	for _, it := range items {
		if it.Outcome == nil {
			out.PendingCount++
			out.PendingStake = out.PendingStake.Add(it.Stake)
			continue
		}
		settledStake = settledStake.Add(it.Stake)
		out.TotalPnL = out.TotalPnL.Add(ItemPnL(it.Stake, it.Odds, it.Outcome))
		if *it.Outcome == models.OutcomeWon {
			out.WonCount++
		} else {
			out.LostCount++
		}
	}
	out.AvailableBalance = initialBudget.Add(out.TotalPnL).Sub(out.PendingStake)
	out.OverBudget = out.AvailableBalance.IsNegative()

	settled := out.WonCount + out.LostCount
	if settled > 0 {
		out.WinRate = float64(out.WonCount) / float64(settled) * 100
	}
	if settledStake.IsPositive() {
		roi, _ := out.TotalPnL.Div(settledStake).Float64()
		out.ROI = roi * 100
	}
	return out
}

// Breakdown aggregates settled bets by keyFn, sorted by PnL descending.
// Pending bets and empty keys are skipped.
func Breakdown(items []Item, keyFn func(Item) string) []BreakdownRow {
	byKey := make(map[string]*BreakdownRow)
	for _, it := range items {
		if it.Outcome == nil {
			continue
		}
		key := keyFn(it)
		if key == "" {
			continue
		}
		row, ok := byKey[key]
		if !ok {
			row = &BreakdownRow{Key: key, PnL: decimal.Zero, Staked: decimal.Zero}
			byKey[key] = row
		}
		row.PnL = row.PnL.Add(ItemPnL(it.Stake, it.Odds, it.Outcome))
		row.Staked = row.Staked.Add(it.Stake)
		if *it.Outcome == models.OutcomeWon {
			row.Wins++
		} else {
			row.Losses++
		}
	}
	rows := make([]BreakdownRow, 0, len(byKey))
	for _, row := range byKey {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].PnL.Equal(rows[j].PnL) {
			return rows[i].PnL.GreaterThan(rows[j].PnL)
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// ByBetType and ByLeague are the two breakdown dimensions the stats API
// exposes.

func ByBetType(it Item) string { return it.BetType }

func ByLeague(it Item) string { return it.League }
