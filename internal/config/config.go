package config

import (
	"os"
	"strconv"
)

// DefaultSeasonBaseline is the season's average alliance score, used as the
// rating prior when no match data is available to derive one.
const DefaultSeasonBaseline = 38.0

// Rating holds the tunables threaded into the rating services. It replaces
// the old settable module-level season constants: callers pass the baseline
// in explicitly instead of mutating shared state.
type Rating struct {
	// SeasonBaseline is the fallback alliance score used when an EPA run has
	// no matches to derive a baseline from, and the default baseline for
	// match predictions.
	SeasonBaseline float64

	// OPRWorkers is the number of goroutines used for each OPR refinement
	// round. Values <= 1 run the round serially.
	OPRWorkers int
}

type Config struct {
	Rating Rating

	// Worker pool
	WorkerCount int
	QueueSize   int
}

// Load loads configuration from environment variables. Every knob has a
// usable default, so loading never fails.
func Load() *Config {
	return &Config{
		Rating: Rating{
			SeasonBaseline: getEnvFloat("SEASON_BASELINE", DefaultSeasonBaseline),
			OPRWorkers:     getEnvInt("OPR_WORKERS", 1),
		},
		WorkerCount: getEnvInt("WORKER_COUNT", 4),
		QueueSize:   getEnvInt("QUEUE_SIZE", 64),
	}
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
