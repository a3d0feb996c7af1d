package logic

import (
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/scouthub/rating-engine/internal/config"
	"github.com/scouthub/rating-engine/internal/models"
)

// Adaptive learning-rate schedule. New teams take large corrections, teams
// with match history take progressively smaller ones, floored at minRate.
const (
	minLearningRate = 0.1
	maxLearningRate = 0.4
	learningDecay   = 0.1
)

// allianceSize is fixed: every alliance is exactly two teams. Per-robot
// baselines always divide by this.
const allianceSize = 2

// ratingWindowSize bounds the trailing overall-rating window kept per team
// for trend detection.
const ratingWindowSize = 5

// trendDeadBand is how far the recent window average must move from the
// window's anchor value before a team is classified as trending.
const trendDeadBand = 0.5

type epaService struct {
	cfg    config.Rating
	logger *zap.SugaredLogger
}

// NewEPAService creates an EPA rating service. A nil logger disables logging.
func NewEPAService(cfg config.Rating, logger *zap.Logger) EPAService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SeasonBaseline <= 0 {
		cfg.SeasonBaseline = config.DefaultSeasonBaseline
	}
	return &epaService{cfg: cfg, logger: logger.Sugar()}
}

// teamRating is the mutable per-team state for a single CalculateEPA run.
// It is created lazily the first time a team number appears and discarded
// when the run's result table has been built.
type teamRating struct {
	overall float64
	phases  *models.PhaseScores
	matches int
	window  []float64 // last ratingWindowSize overall values, oldest first
}

func (r *teamRating) push(rating float64) {
	r.window = append(r.window, rating)
	if len(r.window) > ratingWindowSize {
		r.window = r.window[1:]
	}
}

// epaBaseline is the scoring prior derived from the run's own data: the mean
// alliance total, and mean alliance phase scores when any match carries a
// phase breakdown.
type epaBaseline struct {
	alliance float64
	phases   *models.PhaseScores
}

func (s *epaService) CalculateEPA(matches []models.MatchRecord) models.EPATable {
	return s.CalculateEPAWithBaseline(matches, 0)
}

func (s *epaService) CalculateEPAWithBaseline(matches []models.MatchRecord, baseline float64) models.EPATable {
	table := make(models.EPATable)
	if len(matches) == 0 {
		return table
	}

	// Replay order is load-bearing: the model is an online learner, so the
	// same matches in a different order produce different ratings.
	ordered := make([]models.MatchRecord, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MatchNumber < ordered[j].MatchNumber
	})

	base := s.deriveBaseline(ordered)
	if baseline > 0 {
		base.alliance = baseline
	}

	states := make(map[int]*teamRating)
	state := func(team int) *teamRating {
		st, ok := states[team]
		if !ok {
			st = &teamRating{}
			states[team] = st
		}
		return st
	}

	for _, m := range ordered {
		red := [2]*teamRating{state(m.Red.Teams[0]), state(m.Red.Teams[1])}
		blue := [2]*teamRating{state(m.Blue.Teams[0]), state(m.Blue.Teams[1])}

		// Expected scores use the pre-match ratings of all four teams. The
		// half-weighted opponent term models defensive suppression without a
		// separate defensive state.
		redSum := red[0].overall + red[1].overall
		blueSum := blue[0].overall + blue[1].overall
		expectedRed := base.alliance + redSum - blueSum/2
		expectedBlue := base.alliance + blueSum - redSum/2

		s.updateAlliance(red, m.Red, expectedRed, base, m.HasPhases())
		s.updateAlliance(blue, m.Blue, expectedBlue, base, m.HasPhases())
	}

	for team, st := range states {
		result := models.TeamEPA{
			Team:    team,
			EPA:     round2(st.overall),
			Matches: st.matches,
			Recent:  round2(stat.Mean(st.window, nil)),
			Trend:   classifyTrend(st.window),
		}
		if st.phases != nil {
			result.Phases = &models.PhaseScores{
				Auto:    round2(st.phases.Auto),
				TeleOp:  round2(st.phases.TeleOp),
				Endgame: round2(st.phases.Endgame),
			}
		}
		table[team] = result
	}

	s.logger.Infow("EPA run complete",
		"matches", len(ordered),
		"teams", len(table),
		"baseline", base.alliance,
	)

	return table
}

// updateAlliance applies one match result to both teams of one alliance.
// The score delta is split evenly; each team's correction is scaled by its
// own adaptive learning rate, evaluated before this match is counted.
func (s *epaService) updateAlliance(pair [2]*teamRating, result models.AllianceResult, expected float64, base epaBaseline, hasPhases bool) {
	share := (result.TotalScore - expected) / allianceSize

	for _, st := range pair {
		rate := learningRate(st.matches)
		st.overall += rate * share

		if hasPhases && base.phases != nil {
			if st.phases == nil {
				st.phases = &models.PhaseScores{}
			}
			st.phases.Auto += rate * phaseDelta(result.Phases.Auto, base.phases.Auto, st.phases.Auto)
			st.phases.TeleOp += rate * phaseDelta(result.Phases.TeleOp, base.phases.TeleOp, st.phases.TeleOp)
			st.phases.Endgame += rate * phaseDelta(result.Phases.Endgame, base.phases.Endgame, st.phases.Endgame)
		}

		st.matches++
		st.push(st.overall)
	}
}

// phaseDelta is the per-robot phase residual: half the alliance's phase score
// against the per-robot phase baseline plus the team's current phase rating.
func phaseDelta(actual, baseline, current float64) float64 {
	return actual/allianceSize - (baseline/allianceSize + current)
}

// deriveBaseline computes the scoring prior from the supplied matches. Every
// match contributes both alliance totals; phase baselines are computed only
// over matches that carry a phase breakdown. With no matches the configured
// season default applies.
func (s *epaService) deriveBaseline(matches []models.MatchRecord) epaBaseline {
	if len(matches) == 0 {
		return epaBaseline{alliance: s.cfg.SeasonBaseline}
	}

	totals := make([]float64, 0, 2*len(matches))
	var auto, teleop, endgame []float64
	for _, m := range matches {
		totals = append(totals, m.Red.TotalScore, m.Blue.TotalScore)
		if m.HasPhases() {
			auto = append(auto, m.Red.Phases.Auto, m.Blue.Phases.Auto)
			teleop = append(teleop, m.Red.Phases.TeleOp, m.Blue.Phases.TeleOp)
			endgame = append(endgame, m.Red.Phases.Endgame, m.Blue.Phases.Endgame)
		}
	}

	base := epaBaseline{alliance: stat.Mean(totals, nil)}
	if len(auto) > 0 {
		base.phases = &models.PhaseScores{
			Auto:    stat.Mean(auto, nil),
			TeleOp:  stat.Mean(teleop, nil),
			Endgame: stat.Mean(endgame, nil),
		}
	}
	return base
}

// learningRate returns the adaptive update step for a team that has played
// matchCount matches so far. Strictly decreasing in matchCount, bounded to
// [minLearningRate, maxLearningRate].
func learningRate(matchCount int) float64 {
	return math.Max(minLearningRate, maxLearningRate*math.Exp(-learningDecay*float64(matchCount)))
}

// classifyTrend compares the average of the last three window entries to the
// oldest of those three. Teams with fewer than three recorded ratings are
// reported stable.
func classifyTrend(window []float64) string {
	if len(window) < 3 {
		return models.TrendStable
	}
	last := window[len(window)-3:]
	avg := stat.Mean(last, nil)
	switch {
	case avg > last[0]+trendDeadBand:
		return models.TrendUp
	case avg < last[0]-trendDeadBand:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}
