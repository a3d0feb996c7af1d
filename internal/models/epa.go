package models

import "sort"

// Trend classifications for a team's recent rating movement.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// TeamEPA is one team's result from an EPA run. Phases is nil when none of
// the team's matches carried a phase breakdown. Recent is the average of the
// trailing rating window; Trend classifies its direction.
type TeamEPA struct {
	Team    int          `json:"team"`
	EPA     float64      `json:"epa"`
	Phases  *PhaseScores `json:"phases,omitempty"`
	Matches int          `json:"matches"`
	Recent  float64      `json:"recent"`
	Trend   string       `json:"trend"`
}

// EPATable maps team number to its rating result for one event.
type EPATable map[int]TeamEPA

// Get looks up one team's rating. Unknown teams are not an error.
func (t EPATable) Get(team int) (TeamEPA, bool) {
	r, ok := t[team]
	return r, ok
}

// Rankings returns the table sorted by EPA descending. Ties break by
// ascending team number so the order is reproducible across runs.
func (t EPATable) Rankings() []TeamEPA {
	ranked := make([]TeamEPA, 0, len(t))
	for _, r := range t {
		ranked = append(ranked, r)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].EPA != ranked[j].EPA {
			return ranked[i].EPA > ranked[j].EPA
		}
		return ranked[i].Team < ranked[j].Team
	})
	return ranked
}
