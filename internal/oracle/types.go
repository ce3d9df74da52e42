package oracle

import (
	"time"

	"betledger/internal/models"
)

// ScoreQuery asks the oracle to settle one single bet.
type ScoreQuery struct {
	ID             string    `json:"id"`
	TeamA          string    `json:"teamA"`
	TeamB          string    `json:"teamB"`
	MatchDate      time.Time `json:"matchDate"`
	RecommendedBet string    `json:"recommendedBet"`
}

// ScoreResult is one settled (or unresolvable) single bet in the oracle's
// reply. Both result fields nil means the oracle could not verify the event.
type ScoreResult struct {
	ID         string          `json:"id"`
	FinalScore *string         `json:"finalScore"`
	BetOutcome *models.Outcome `json:"betOutcome"`
}

// LegQuery is one leg of an accumulator settlement request.
type LegQuery struct {
	TeamA      string    `json:"teamA"`
	TeamB      string    `json:"teamB"`
	Prediction string    `json:"prediction"`
	MatchDate  time.Time `json:"matchDate"`
}

// AccumulatorQuery asks the oracle to settle every leg of one accumulator.
type AccumulatorQuery struct {
	ID   string     `json:"id"`
	Legs []LegQuery `json:"legs"`
}

// AccumulatorVerdict is the oracle's per-leg reply for one accumulator. The
// final outcome is advisory only; callers rederive it from the legs.
type AccumulatorVerdict struct {
	ID           string             `json:"id"`
	FinalOutcome *models.Outcome    `json:"finalOutcome"`
	LegResults   []models.LegResult `json:"legResults"`
}
