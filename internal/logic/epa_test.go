package logic

import (
	"math"
	"reflect"
	"testing"

	"github.com/scouthub/rating-engine/internal/config"
	"github.com/scouthub/rating-engine/internal/models"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func match(number int, redTeams [2]int, redScore float64, blueTeams [2]int, blueScore float64) models.MatchRecord {
	return models.MatchRecord{
		MatchNumber: number,
		Red:         models.AllianceResult{Teams: redTeams, TotalScore: redScore},
		Blue:        models.AllianceResult{Teams: blueTeams, TotalScore: blueScore},
	}
}

func TestCalculateEPAEmpty(t *testing.T) {
	svc := NewEPAService(config.Rating{}, nil)
	got := svc.CalculateEPA(nil)
	if len(got) != 0 {
		t.Fatalf("expected empty table, got %d entries", len(got))
	}
}

func TestCalculateEPASingleMatchWithBaseline(t *testing.T) {
	svc := NewEPAService(config.Rating{SeasonBaseline: 38}, nil)
	matches := []models.MatchRecord{
		match(1, [2]int{1001, 1002}, 60, [2]int{2001, 2002}, 40),
	}

	table := svc.CalculateEPAWithBaseline(matches, 38)

	// Pre-match ratings are zero, so each alliance expects exactly the
	// baseline: red delta 22 split two ways at the initial 0.4 rate, blue
	// delta 2 likewise.
	tests := []struct {
		team int
		want float64
	}{
		{1001, 4.4},
		{1002, 4.4},
		{2001, 0.4},
		{2002, 0.4},
	}
	for _, tt := range tests {
		r, ok := table.Get(tt.team)
		if !ok {
			t.Fatalf("team %d missing from table", tt.team)
		}
		if !almostEqual(r.EPA, tt.want, 1e-9) {
			t.Errorf("team %d EPA = %v, want %v", tt.team, r.EPA, tt.want)
		}
		if r.Matches != 1 {
			t.Errorf("team %d matches = %d, want 1", tt.team, r.Matches)
		}
		if !almostEqual(r.Recent, tt.want, 1e-9) {
			t.Errorf("team %d recent = %v, want %v", tt.team, r.Recent, tt.want)
		}
		if r.Trend != models.TrendStable {
			t.Errorf("team %d trend = %q, want stable with one sample", tt.team, r.Trend)
		}
		if r.Phases != nil {
			t.Errorf("team %d has phase ratings without phase data", tt.team)
		}
	}
}

func TestCalculateEPADerivedBaseline(t *testing.T) {
	svc := NewEPAService(config.Rating{SeasonBaseline: 38}, nil)
	matches := []models.MatchRecord{
		match(1, [2]int{1001, 1002}, 60, [2]int{2001, 2002}, 40),
	}

	// Without an override the baseline is the mean alliance total (50), so
	// the red delta is 10 and the blue delta is -10.
	table := svc.CalculateEPA(matches)

	if r, _ := table.Get(1001); !almostEqual(r.EPA, 2.0, 1e-9) {
		t.Errorf("red EPA = %v, want 2.0 against derived baseline", r.EPA)
	}
	if r, _ := table.Get(2001); !almostEqual(r.EPA, -2.0, 1e-9) {
		t.Errorf("blue EPA = %v, want -2.0 against derived baseline", r.EPA)
	}
}

func TestCalculateEPAOrderDependent(t *testing.T) {
	svc := NewEPAService(config.Rating{}, nil)

	red := [2]int{1001, 1002}
	blue := [2]int{2001, 2002}

	// Same two results, opposite chronological order.
	forward := []models.MatchRecord{
		match(1, red, 60, blue, 40),
		match(2, red, 40, blue, 60),
	}
	reversed := []models.MatchRecord{
		match(2, red, 60, blue, 40),
		match(1, red, 40, blue, 60),
	}

	a := svc.CalculateEPA(forward)
	b := svc.CalculateEPA(reversed)

	ra, _ := a.Get(1001)
	rb, _ := b.Get(1001)
	if almostEqual(ra.EPA, rb.EPA, 1e-9) {
		t.Errorf("EPA should depend on chronological order, got %v for both orderings", ra.EPA)
	}
}

func TestCalculateEPASliceOrderIrrelevant(t *testing.T) {
	svc := NewEPAService(config.Rating{}, nil)

	red := [2]int{1001, 1002}
	blue := [2]int{2001, 2002}
	matches := []models.MatchRecord{
		match(1, red, 60, blue, 40),
		match(2, red, 40, blue, 60),
		match(3, red, 55, blue, 45),
	}
	shuffled := []models.MatchRecord{matches[2], matches[0], matches[1]}

	a := svc.CalculateEPA(matches)
	b := svc.CalculateEPA(shuffled)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("slice order changed the result: %v vs %v", a, b)
	}
}

func TestCalculateEPAPhaseRatings(t *testing.T) {
	svc := NewEPAService(config.Rating{}, nil)
	matches := []models.MatchRecord{
		{
			MatchNumber: 1,
			Red: models.AllianceResult{
				Teams:      [2]int{1001, 1002},
				TotalScore: 60,
				Phases:     &models.PhaseScores{Auto: 20, TeleOp: 30, Endgame: 10},
			},
			Blue: models.AllianceResult{
				Teams:      [2]int{2001, 2002},
				TotalScore: 40,
				Phases:     &models.PhaseScores{Auto: 10, TeleOp: 20, Endgame: 10},
			},
		},
	}

	table := svc.CalculateEPA(matches)

	// Derived phase baselines: auto 15, teleop 25, endgame 10. Per-robot
	// phase deltas for red: 10-7.5, 15-12.5, 5-5, all at the 0.4 rate.
	r, _ := table.Get(1001)
	if r.Phases == nil {
		t.Fatal("expected phase ratings with phase data present")
	}
	want := models.PhaseScores{Auto: 1.0, TeleOp: 1.0, Endgame: 0.0}
	if !reflect.DeepEqual(*r.Phases, want) {
		t.Errorf("red phase ratings = %+v, want %+v", *r.Phases, want)
	}

	b, _ := table.Get(2001)
	wantBlue := models.PhaseScores{Auto: -1.0, TeleOp: -1.0, Endgame: 0.0}
	if !reflect.DeepEqual(*b.Phases, wantBlue) {
		t.Errorf("blue phase ratings = %+v, want %+v", *b.Phases, wantBlue)
	}
}

func TestCalculateEPAPhasePresencePerTeam(t *testing.T) {
	svc := NewEPAService(config.Rating{}, nil)
	withPhases := models.MatchRecord{
		MatchNumber: 1,
		Red: models.AllianceResult{
			Teams:      [2]int{1, 2},
			TotalScore: 50,
			Phases:     &models.PhaseScores{Auto: 20, TeleOp: 20, Endgame: 10},
		},
		Blue: models.AllianceResult{
			Teams:      [2]int{3, 4},
			TotalScore: 30,
			Phases:     &models.PhaseScores{Auto: 10, TeleOp: 15, Endgame: 5},
		},
	}
	withoutPhases := match(2, [2]int{5, 6}, 45, [2]int{7, 8}, 35)

	table := svc.CalculateEPA([]models.MatchRecord{withPhases, withoutPhases})

	if r, _ := table.Get(1); r.Phases == nil {
		t.Error("team with phase-carrying matches should have phase ratings")
	}
	if r, _ := table.Get(5); r.Phases != nil {
		t.Error("team without phase-carrying matches should have no phase ratings")
	}
}

func TestLearningRate(t *testing.T) {
	tests := []struct {
		matchCount int
		want       float64
	}{
		{0, 0.4},
		{1, 0.4 * math.Exp(-0.1)},
		{10, 0.4 * math.Exp(-1.0)},
		{100, 0.1}, // floored
	}
	for _, tt := range tests {
		if got := learningRate(tt.matchCount); !almostEqual(got, tt.want, 1e-12) {
			t.Errorf("learningRate(%d) = %v, want %v", tt.matchCount, got, tt.want)
		}
	}

	// Strictly decreasing until the floor.
	prev := learningRate(0)
	for n := 1; n <= 50; n++ {
		cur := learningRate(n)
		if cur > prev {
			t.Fatalf("learningRate(%d) = %v > learningRate(%d) = %v", n, cur, n-1, prev)
		}
		if cur < minLearningRate || cur > maxLearningRate {
			t.Fatalf("learningRate(%d) = %v outside [%v, %v]", n, cur, minLearningRate, maxLearningRate)
		}
		prev = cur
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name   string
		window []float64
		want   string
	}{
		{"empty", nil, models.TrendStable},
		{"two samples", []float64{1, 5}, models.TrendStable},
		{"rising", []float64{0, 1, 2, 3, 4}, models.TrendUp},
		{"falling", []float64{4, 3, 2, 1, 0}, models.TrendDown},
		{"flat", []float64{2, 2.1, 2, 2.2, 2.1}, models.TrendStable},
		{"within dead band", []float64{0, 0.4, 0.5}, models.TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyTrend(tt.window); got != tt.want {
				t.Errorf("classifyTrend(%v) = %q, want %q", tt.window, got, tt.want)
			}
		})
	}
}

func TestRatingWindowEviction(t *testing.T) {
	var r teamRating
	for i := 1; i <= 7; i++ {
		r.push(float64(i))
	}
	want := []float64{3, 4, 5, 6, 7}
	if !reflect.DeepEqual(r.window, want) {
		t.Errorf("window = %v, want %v", r.window, want)
	}
}
