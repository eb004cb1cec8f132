package scoring

import (
	"math"
)

// Normalized view of a score map.
type Summary struct {
	MaxScore    float64 `json:"maxScore"`
	MaxCategory string  `json:"maxCategory"`
	// plain sum of all (clamped) scores
	CumulativeScore float64 `json:"cumulativeScore"`
	// sum divided by the number of categories present
	NormalizedCumulativeScore float64 `json:"normalizedCumulativeScore"`
}

// Oracle scores are nominally in [0,1]. Anything else is pulled back in to range rather than trusted.
func clampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Single pass over the score map. The maximum is only replaced by a strictly greater score, so on ties the
// first-seen category wins, and a map of all-zero scores has no MaxCategory. An empty map yields the zero Summary.
func Extract(scores ScoreMap) Summary {
	var sum Summary
	for _, cs := range scores {
		s := clampScore(cs.Score)
		if s > sum.MaxScore {
			sum.MaxScore = s
			sum.MaxCategory = cs.Category
		}
		sum.CumulativeScore += s
	}
	if len(scores) > 0 {
		sum.NormalizedCumulativeScore = sum.CumulativeScore / float64(len(scores))
	}
	return sum
}
