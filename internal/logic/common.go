package logic

import "math"

// round2 rounds a rating to two decimal places for presentation. Internal
// engine state is never rounded; only emitted results are.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
