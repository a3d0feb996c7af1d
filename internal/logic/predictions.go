package logic

import (
	"math"

	"go.uber.org/zap"

	"github.com/scouthub/rating-engine/internal/config"
	"github.com/scouthub/rating-engine/internal/models"
)

// logisticScale divides the expected score difference before the logistic
// squash. A 10-point edge maps to a ~73% win probability.
const logisticScale = 10

type predictionService struct {
	cfg    config.Rating
	logger *zap.SugaredLogger
}

// NewPredictionService creates a match-outcome predictor. A nil logger
// disables logging.
func NewPredictionService(cfg config.Rating, logger *zap.Logger) PredictionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SeasonBaseline <= 0 {
		cfg.SeasonBaseline = config.DefaultSeasonBaseline
	}
	return &predictionService{cfg: cfg, logger: logger.Sugar()}
}

// PredictMatch forecasts red vs blue from EPA ratings. Teams missing from
// the table contribute zero rating rather than erroring, so a prediction is
// always produced. baseline <= 0 selects the configured season default.
func (s *predictionService) PredictMatch(epa models.EPATable, red, blue [2]int, baseline float64) models.MatchPrediction {
	if baseline <= 0 {
		baseline = s.cfg.SeasonBaseline
	}

	redScore := baseline + ratingOf(epa, red[0]) + ratingOf(epa, red[1])
	blueScore := baseline + ratingOf(epa, blue[0]) + ratingOf(epa, blue[1])

	diff := redScore - blueScore
	redWinProb := 1 / (1 + math.Exp(-diff/logisticScale))

	return models.MatchPrediction{
		RedTeams:    red,
		BlueTeams:   blue,
		RedScore:    int(math.Round(redScore)),
		BlueScore:   int(math.Round(blueScore)),
		RedWinProb:  round2(redWinProb),
		BlueWinProb: round2(1 - redWinProb),
		Margin:      round2(diff),
	}
}

func ratingOf(epa models.EPATable, team int) float64 {
	if r, ok := epa.Get(team); ok {
		return r.EPA
	}
	return 0
}
