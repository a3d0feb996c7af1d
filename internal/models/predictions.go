package models

// MatchPrediction forecasts the outcome of a hypothetical match between two
// alliances. Scores are rounded to the nearest point; probabilities are
// complementary and rounded to 2 decimals. Margin is the signed expected
// score difference, red minus blue.
type MatchPrediction struct {
	RedTeams    [2]int  `json:"red_teams"`
	BlueTeams   [2]int  `json:"blue_teams"`
	RedScore    int     `json:"red_score"`
	BlueScore   int     `json:"blue_score"`
	RedWinProb  float64 `json:"red_win_prob"`
	BlueWinProb float64 `json:"blue_win_prob"`
	Margin      float64 `json:"margin"`
}
