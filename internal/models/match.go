package models

// PhaseScores decomposes an alliance score into the season's three scoring
// phases. The set of phases is fixed for a season; a record either carries
// all of them or none.
type PhaseScores struct {
	Auto    float64 `json:"auto"`
	TeleOp  float64 `json:"teleop"`
	Endgame float64 `json:"endgame"`
}

// AllianceResult is one alliance's side of a match: exactly two team numbers
// and the score they put up together. Phases is nil when the data source did
// not report a phase breakdown for this match.
type AllianceResult struct {
	Teams      [2]int       `json:"teams"`
	TotalScore float64      `json:"total_score"`
	Phases     *PhaseScores `json:"phases,omitempty"`
}

// MatchRecord is a normalized alliance-based match result. MatchNumber orders
// matches within an event; it is a sequence number, not a timestamp. The four
// team numbers across both alliances are presumed distinct — the rating
// engines assume it and do not check.
type MatchRecord struct {
	MatchNumber int            `json:"match_number"`
	Red         AllianceResult `json:"red"`
	Blue        AllianceResult `json:"blue"`
}

// HasPhases reports whether both alliances carry a phase breakdown.
// Records with a breakdown on only one side are treated as having none.
func (m MatchRecord) HasPhases() bool {
	return m.Red.Phases != nil && m.Blue.Phases != nil
}

// Margin is the red alliance's score margin (negative when blue won).
func (m MatchRecord) Margin() float64 {
	return m.Red.TotalScore - m.Blue.TotalScore
}

// TeamNumbers returns all four team numbers, red pair first.
func (m MatchRecord) TeamNumbers() [4]int {
	return [4]int{m.Red.Teams[0], m.Red.Teams[1], m.Blue.Teams[0], m.Blue.Teams[1]}
}
