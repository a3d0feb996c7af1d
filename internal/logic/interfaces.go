package logic

import "github.com/scouthub/rating-engine/internal/models"

// EPAService computes incremental per-team ratings by replaying an event's
// matches in chronological order. The computation is order-dependent by
// design: it models each team's skill as an online estimate updated after
// every match the team plays.
type EPAService interface {
	// CalculateEPA derives the scoring baseline from the matches themselves,
	// falling back to the configured season default when empty.
	CalculateEPA(matches []models.MatchRecord) models.EPATable

	// CalculateEPAWithBaseline pins the alliance-score baseline instead of
	// deriving it, e.g. to rate an event against the season-wide average.
	// A baseline <= 0 behaves like CalculateEPA.
	CalculateEPAWithBaseline(matches []models.MatchRecord, baseline float64) models.EPATable
}

// OPRService estimates each team's average offensive contribution from a
// complete batch of matches via iterative refinement. Match order does not
// affect the result.
type OPRService interface {
	CalculateOPR(matches []models.MatchRecord) models.OPRTable
}

// PredictionService forecasts a single match outcome from already-computed
// EPA ratings. A baseline <= 0 selects the configured season default.
type PredictionService interface {
	PredictMatch(epa models.EPATable, red, blue [2]int, baseline float64) models.MatchPrediction
}
