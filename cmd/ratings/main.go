// Command ratings computes EPA and OPR tables from normalized match files
// and prints ranked results. Each input file holds one event's matches as a
// JSON array of match records; multiple files are rated concurrently through
// the worker pool.
//
// Usage:
//
//	ratings [-predict] [-red 1001,1002 -blue 2001,2002] [-baseline 38] event.json [event2.json ...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/scouthub/rating-engine/internal/config"
	"github.com/scouthub/rating-engine/internal/logic"
	"github.com/scouthub/rating-engine/internal/models"
	"github.com/scouthub/rating-engine/internal/worker"
)

func main() {
	var (
		predict  = flag.Bool("predict", false, "predict a match between -red and -blue using the first event's EPA table")
		redFlag  = flag.String("red", "", "red alliance team numbers, comma separated")
		blueFlag = flag.String("blue", "", "blue alliance team numbers, comma separated")
		baseline = flag.Float64("baseline", 0, "baseline alliance score override for predictions (0 = season default)")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ratings [flags] <matches.json> [...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()
	epaSvc := logic.NewEPAService(cfg.Rating, logger)
	oprSvc := logic.NewOPRService(cfg.Rating, logger)

	results, err := rateFiles(cfg, epaSvc, oprSvc, logger, flag.Args())
	if err != nil {
		logger.Sugar().Fatalw("Rating run failed", "error", err)
	}

	for _, path := range flag.Args() {
		key := eventKey(path)
		res, ok := results[key]
		if !ok {
			continue
		}
		fmt.Printf("\n=== %s ===\n", key)
		renderEPA(res.EPA)
		renderOPR(res.OPR)
	}

	if *predict {
		red, err := parseAlliance(*redFlag)
		if err != nil {
			logger.Sugar().Fatalw("Bad -red flag", "error", err)
		}
		blue, err := parseAlliance(*blueFlag)
		if err != nil {
			logger.Sugar().Fatalw("Bad -blue flag", "error", err)
		}

		first := results[eventKey(flag.Arg(0))]
		predSvc := logic.NewPredictionService(cfg.Rating, logger)
		renderPrediction(predSvc.PredictMatch(first.EPA, red, blue, *baseline))
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zcfg.Build()
}

// rateFiles computes tables for every input file. A single file runs inline;
// several files fan out through the worker pool.
func rateFiles(cfg *config.Config, epaSvc logic.EPAService, oprSvc logic.OPRService, logger *zap.Logger, paths []string) (map[string]worker.Result, error) {
	if len(paths) == 1 {
		matches, err := loadMatches(paths[0])
		if err != nil {
			return nil, err
		}
		return map[string]worker.Result{
			eventKey(paths[0]): {
				EventKey: eventKey(paths[0]),
				EPA:      epaSvc.CalculateEPA(matches),
				OPR:      oprSvc.CalculateOPR(matches),
			},
		}, nil
	}

	pool := worker.NewPool(worker.PoolConfig{
		WorkerCount: cfg.WorkerCount,
		QueueSize:   cfg.QueueSize,
		EPA:         epaSvc,
		OPR:         oprSvc,
		Logger:      logger,
	})
	pool.Start(context.Background())

	for _, path := range paths {
		matches, err := loadMatches(path)
		if err != nil {
			pool.Stop()
			return nil, err
		}
		pool.Enqueue(eventKey(path), matches)
	}

	pool.Stop()
	return pool.Results(), nil
}

func loadMatches(path string) ([]models.MatchRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var matches []models.MatchRecord
	if err := json.Unmarshal(data, &matches); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return matches, nil
}

func eventKey(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func parseAlliance(s string) ([2]int, error) {
	var alliance [2]int
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return alliance, fmt.Errorf("expected two comma-separated team numbers, got %q", s)
	}
	for i, p := range parts {
		team, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return alliance, fmt.Errorf("bad team number %q: %w", p, err)
		}
		alliance[i] = team
	}
	return alliance, nil
}

func renderEPA(epa models.EPATable) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("EPA")
	t.AppendHeader(table.Row{"Rank", "Team", "EPA", "Auto", "TeleOp", "Endgame", "Recent", "Trend", "Matches"})
	for i, r := range epa.Rankings() {
		auto, teleop, endgame := "-", "-", "-"
		if r.Phases != nil {
			auto = fmt.Sprintf("%.2f", r.Phases.Auto)
			teleop = fmt.Sprintf("%.2f", r.Phases.TeleOp)
			endgame = fmt.Sprintf("%.2f", r.Phases.Endgame)
		}
		t.AppendRow(table.Row{i + 1, r.Team, fmt.Sprintf("%.2f", r.EPA), auto, teleop, endgame, fmt.Sprintf("%.2f", r.Recent), r.Trend, r.Matches})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func renderOPR(opr models.OPRTable) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("OPR")
	t.AppendHeader(table.Row{"Rank", "Team", "OPR", "DPR", "CCWM"})
	for i, r := range opr.Rankings() {
		t.AppendRow(table.Row{i + 1, r.Team, fmt.Sprintf("%.2f", r.OPR), fmt.Sprintf("%.2f", r.DPR), fmt.Sprintf("%.2f", r.CCWM)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func renderPrediction(p models.MatchPrediction) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Prediction")
	t.AppendHeader(table.Row{"Alliance", "Teams", "Score", "Win Prob."})
	t.AppendRow(table.Row{"Red", fmt.Sprintf("%d / %d", p.RedTeams[0], p.RedTeams[1]), p.RedScore, fmt.Sprintf("%.2f", p.RedWinProb)})
	t.AppendRow(table.Row{"Blue", fmt.Sprintf("%d / %d", p.BlueTeams[0], p.BlueTeams[1]), p.BlueScore, fmt.Sprintf("%.2f", p.BlueWinProb)})
	t.SetStyle(table.StyleLight)
	t.Render()
	fmt.Printf("Expected margin (red): %+.2f\n", p.Margin)
}
