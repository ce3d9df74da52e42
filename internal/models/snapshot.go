package models

import "time"

// Snapshot types are the JSON shapes produced by the generation service and
// stored verbatim on tracked rows. They are never mutated after tracking.

type Prediction struct {
	ID         string    `json:"id"`
	TeamA      string    `json:"teamA"`
	TeamB      string    `json:"teamB"`
	League     string    `json:"league,omitempty"`
	Sport      string    `json:"sport,omitempty"`
	MatchDate  time.Time `json:"matchDate"`
	Stadium    string    `json:"stadium,omitempty"`
	City       string    `json:"city,omitempty"`
	KeyStats   string    `json:"keyStats,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`

	RecommendedBet string  `json:"recommendedBet"`
	Odds           float64 `json:"odds"`
}

type AccumulatorLeg struct {
	TeamA      string    `json:"teamA"`
	TeamB      string    `json:"teamB"`
	Prediction string    `json:"prediction"`
	Sport      string    `json:"sport,omitempty"`
	MatchDate  time.Time `json:"matchDate"`
	Odds       float64   `json:"odds"`
	Confidence float64   `json:"confidence,omitempty"`
}

type Accumulator struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	SuccessProbability float64          `json:"successProbability,omitempty"`
	CombinedOdds       float64          `json:"combinedOdds"`
	RiskLevel          string           `json:"riskLevel,omitempty"`
	Rationale          string           `json:"rationale,omitempty"`
	Games              []AccumulatorLeg `json:"games"`

	// Optional attribution back to the strategy that generated this tip.
	StrategyID        uint64 `json:"strategyId,omitempty"`
	StrategyVersionID uint64 `json:"strategyVersionId,omitempty"`
}

// LastLegDate returns the scheduled time of the latest leg, or the zero time
// for an empty accumulator.
func (a Accumulator) LastLegDate() time.Time {
	var latest time.Time
	for _, g := range a.Games {
		if g.MatchDate.After(latest) {
			latest = g.MatchDate
		}
	}
	return latest
}

// Feed is one batch of generated recommendations after normalization.
type Feed struct {
	Predictions  []Prediction  `json:"predictions"`
	Accumulators []Accumulator `json:"accumulators"`
}
