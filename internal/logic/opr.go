package logic

import (
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/scouthub/rating-engine/internal/config"
	"github.com/scouthub/rating-engine/internal/models"
)

// The refinement schedule is part of the output contract: 100 rounds with a
// learning rate decaying linearly from 0.15 to 0.075. Changing either alters
// every emitted rating.
const (
	oprRounds   = 100
	oprBaseRate = 0.15
)

type oprService struct {
	cfg    config.Rating
	logger *zap.SugaredLogger
}

// NewOPRService creates an OPR rating service. A nil logger disables logging.
func NewOPRService(cfg config.Rating, logger *zap.Logger) OPRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &oprService{cfg: cfg, logger: logger.Sugar()}
}

// oprEstimate is one team's in-progress estimate across refinement rounds.
// phases is non-nil for every team when the batch carries phase data.
type oprEstimate struct {
	offense float64
	margin  float64
	phases  *models.PhaseScores
}

// pendingResiduals collects one team's queued residual shares for a single
// round. Residuals are applied only after the whole batch has been scanned,
// which is what makes the fit order-independent.
type pendingResiduals struct {
	offense []float64
	margin  []float64
	auto    []float64
	teleop  []float64
	endgame []float64
}

func (s *oprService) CalculateOPR(matches []models.MatchRecord) models.OPRTable {
	table := make(models.OPRTable)
	if len(matches) == 0 {
		return table
	}

	hasPhases := false
	for _, m := range matches {
		if m.HasPhases() {
			hasPhases = true
			break
		}
	}

	estimates := s.seedEstimates(matches, hasPhases)

	for round := 0; round < oprRounds; round++ {
		s.refineRound(matches, estimates, hasPhases, roundRate(round))
	}

	for team, est := range estimates {
		result := models.TeamOPR{
			Team: team,
			OPR:  round2(est.offense),
			DPR:  round2(est.offense - est.margin),
			CCWM: round2(est.margin),
		}
		if est.phases != nil {
			result.Phases = &models.PhaseScores{
				Auto:    round2(est.phases.Auto),
				TeleOp:  round2(est.phases.TeleOp),
				Endgame: round2(est.phases.Endgame),
			}
		}
		table[team] = result
	}

	s.logger.Infow("OPR fit complete",
		"matches", len(matches),
		"teams", len(table),
		"rounds", oprRounds,
	)

	return table
}

// roundRate is the damped learning rate for one refinement round, decaying
// linearly from oprBaseRate to half of it across the schedule.
func roundRate(round int) float64 {
	return oprBaseRate * (1 - float64(round)/oprRounds/2)
}

// refineRound queues every match's residuals against the current estimates,
// then applies each team's mean queued residual scaled by rate. Teams with
// nothing queued are left unchanged.
func (s *oprService) refineRound(matches []models.MatchRecord, estimates map[int]*oprEstimate, hasPhases bool, rate float64) {
	pending := s.collectResiduals(matches, estimates, hasPhases)

	for team, p := range pending {
		est := estimates[team]
		if len(p.offense) > 0 {
			est.offense += rate * stat.Mean(p.offense, nil)
		}
		if len(p.margin) > 0 {
			est.margin += rate * stat.Mean(p.margin, nil)
		}
		if est.phases != nil && len(p.auto) > 0 {
			est.phases.Auto += rate * stat.Mean(p.auto, nil)
			est.phases.TeleOp += rate * stat.Mean(p.teleop, nil)
			est.phases.Endgame += rate * stat.Mean(p.endgame, nil)
		}
	}
}

// seedEstimates builds the estimation universe (every distinct team number,
// collected in ascending order for reproducibility) and initializes every
// offensive estimate to the batch-wide mean score per robot. Phase seeds use
// the same construction over phase-carrying matches only.
func (s *oprService) seedEstimates(matches []models.MatchRecord, hasPhases bool) map[int]*oprEstimate {
	teamSet := make(map[int]struct{})
	var totalScore float64
	var phaseSum models.PhaseScores
	phaseMatches := 0

	for _, m := range matches {
		for _, team := range m.TeamNumbers() {
			teamSet[team] = struct{}{}
		}
		totalScore += m.Red.TotalScore + m.Blue.TotalScore
		if m.HasPhases() {
			phaseSum.Auto += m.Red.Phases.Auto + m.Blue.Phases.Auto
			phaseSum.TeleOp += m.Red.Phases.TeleOp + m.Blue.Phases.TeleOp
			phaseSum.Endgame += m.Red.Phases.Endgame + m.Blue.Phases.Endgame
			phaseMatches++
		}
	}

	teams := make([]int, 0, len(teamSet))
	for team := range teamSet {
		teams = append(teams, team)
	}
	sort.Ints(teams)

	offenseSeed := totalScore / (4 * float64(len(matches)))
	var phaseSeed models.PhaseScores
	if hasPhases && phaseMatches > 0 {
		phaseSeed = models.PhaseScores{
			Auto:    phaseSum.Auto / (4 * float64(phaseMatches)),
			TeleOp:  phaseSum.TeleOp / (4 * float64(phaseMatches)),
			Endgame: phaseSum.Endgame / (4 * float64(phaseMatches)),
		}
	}

	estimates := make(map[int]*oprEstimate, len(teams))
	for _, team := range teams {
		est := &oprEstimate{offense: offenseSeed}
		if hasPhases {
			seed := phaseSeed
			est.phases = &seed
		}
		estimates[team] = est
	}
	return estimates
}

// collectResiduals scans every match against the current estimates and queues
// the split residual shares. Estimates are read-only during the scan, so the
// per-match map is safe to parallelize; chunks stay contiguous and merge in
// order, making the parallel path produce exactly the serial result.
func (s *oprService) collectResiduals(matches []models.MatchRecord, estimates map[int]*oprEstimate, hasPhases bool) map[int]*pendingResiduals {
	workers := s.cfg.OPRWorkers
	if workers <= 1 || len(matches) < workers {
		return residualsOf(matches, estimates, hasPhases)
	}

	parts := make([]map[int]*pendingResiduals, workers)
	chunk := (len(matches) + workers - 1) / workers

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		lo := i * chunk
		hi := lo + chunk
		if hi > len(matches) {
			hi = len(matches)
		}
		if lo >= hi {
			break
		}
		i := i
		g.Go(func() error {
			parts[i] = residualsOf(matches[lo:hi], estimates, hasPhases)
			return nil
		})
	}
	// Round boundary: every chunk finishes before residuals merge.
	_ = g.Wait()

	merged := make(map[int]*pendingResiduals)
	for _, part := range parts {
		for team, p := range part {
			m, ok := merged[team]
			if !ok {
				merged[team] = p
				continue
			}
			m.offense = append(m.offense, p.offense...)
			m.margin = append(m.margin, p.margin...)
			m.auto = append(m.auto, p.auto...)
			m.teleop = append(m.teleop, p.teleop...)
			m.endgame = append(m.endgame, p.endgame...)
		}
	}
	return merged
}

func residualsOf(matches []models.MatchRecord, estimates map[int]*oprEstimate, hasPhases bool) map[int]*pendingResiduals {
	pending := make(map[int]*pendingResiduals)
	queue := func(team int) *pendingResiduals {
		p, ok := pending[team]
		if !ok {
			p = &pendingResiduals{}
			pending[team] = p
		}
		return p
	}

	for _, m := range matches {
		red := m.Red.Teams
		blue := m.Blue.Teams

		// Alliance score residuals, split evenly between partners.
		redShare := allianceResidual(m.Red, estimates) / 2
		blueShare := allianceResidual(m.Blue, estimates) / 2
		for _, team := range red {
			queue(team).offense = append(queue(team).offense, redShare)
		}
		for _, team := range blue {
			queue(team).offense = append(queue(team).offense, blueShare)
		}

		// Margin residual, quartered across all four teams with the blue
		// side's share negated.
		predictedMargin := estimates[red[0]].margin + estimates[red[1]].margin -
			estimates[blue[0]].margin - estimates[blue[1]].margin
		quarter := (m.Margin() - predictedMargin) / 4
		for _, team := range red {
			queue(team).margin = append(queue(team).margin, quarter)
		}
		for _, team := range blue {
			queue(team).margin = append(queue(team).margin, -quarter)
		}

		if hasPhases && m.HasPhases() {
			queuePhaseResiduals(queue, m.Red, estimates)
			queuePhaseResiduals(queue, m.Blue, estimates)
		}
	}
	return pending
}

func allianceResidual(result models.AllianceResult, estimates map[int]*oprEstimate) float64 {
	predicted := estimates[result.Teams[0]].offense + estimates[result.Teams[1]].offense
	return result.TotalScore - predicted
}

func queuePhaseResiduals(queue func(int) *pendingResiduals, result models.AllianceResult, estimates map[int]*oprEstimate) {
	a := estimates[result.Teams[0]].phases
	b := estimates[result.Teams[1]].phases
	autoShare := (result.Phases.Auto - (a.Auto + b.Auto)) / 2
	teleopShare := (result.Phases.TeleOp - (a.TeleOp + b.TeleOp)) / 2
	endgameShare := (result.Phases.Endgame - (a.Endgame + b.Endgame)) / 2
	for _, team := range result.Teams {
		p := queue(team)
		p.auto = append(p.auto, autoShare)
		p.teleop = append(p.teleop, teleopShare)
		p.endgame = append(p.endgame, endgameShare)
	}
}
