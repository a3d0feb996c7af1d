package models

import "sort"

// TeamOPR is one team's result from an OPR batch fit. OPR is the offensive
// estimate, CCWM the fitted contribution to winning margin, and DPR the
// derived defensive rating (OPR − CCWM). Phases is nil for every team when
// no match in the batch carried a phase breakdown.
type TeamOPR struct {
	Team   int          `json:"team"`
	OPR    float64      `json:"opr"`
	Phases *PhaseScores `json:"phases,omitempty"`
	DPR    float64      `json:"dpr"`
	CCWM   float64      `json:"ccwm"`
}

// OPRTable maps team number to its OPR result for one event.
type OPRTable map[int]TeamOPR

// Get looks up one team's result. Unknown teams are not an error.
func (t OPRTable) Get(team int) (TeamOPR, bool) {
	r, ok := t[team]
	return r, ok
}

// Rankings returns the table sorted by OPR descending, ties by ascending
// team number.
func (t OPRTable) Rankings() []TeamOPR {
	ranked := make([]TeamOPR, 0, len(t))
	for _, r := range t {
		ranked = append(ranked, r)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].OPR != ranked[j].OPR {
			return ranked[i].OPR > ranked[j].OPR
		}
		return ranked[i].Team < ranked[j].Team
	})
	return ranked
}
