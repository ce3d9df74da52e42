package models

// Outcome is a settled bet result. A nil *Outcome means the result could not
// be determined yet (or at all) and the item stays pending.
type Outcome string

const (
	OutcomeWon  Outcome = "Won"
	OutcomeLost Outcome = "Lost"
)

// PredictionResult is the settlement state for a single prediction.
// Both fields nil means "unresolved": cached to suppress repeat lookups but
// still rendered as pending.
type PredictionResult struct {
	FinalScore *string  `json:"finalScore"`
	Outcome    *Outcome `json:"betOutcome"`
}

func (r PredictionResult) Settled() bool {
	return r.Outcome != nil
}

type LegResult struct {
	TeamA   string   `json:"teamA"`
	TeamB   string   `json:"teamB"`
	Outcome *Outcome `json:"outcome"`
}

// AccumulatorResult is the settlement state for a multi-leg bet.
type AccumulatorResult struct {
	FinalOutcome *Outcome    `json:"finalOutcome"`
	LegResults   []LegResult `json:"legResults"`
}

func (r AccumulatorResult) Settled() bool {
	return r.FinalOutcome != nil
}

// DeriveFinalOutcome recomputes the accumulator outcome from its legs: any
// lost leg loses the whole bet, all legs won wins it, anything else is
// unresolved. The wire value is never trusted over this.
func DeriveFinalOutcome(legs []LegResult) *Outcome {
	if len(legs) == 0 {
		return nil
	}
	allWon := true
	for _, leg := range legs {
		if leg.Outcome == nil {
			allWon = false
			continue
		}
		if *leg.Outcome == OutcomeLost {
			lost := OutcomeLost
			return &lost
		}
		if *leg.Outcome != OutcomeWon {
			allWon = false
		}
	}
	if allWon {
		won := OutcomeWon
		return &won
	}
	return nil
}

// OutcomePtr is a convenience for building results.
func OutcomePtr(o Outcome) *Outcome {
	return &o
}
