package action

import (
	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/scoring"
)

// Five-step policy which considers both the single worst category and the average over all categories. Stateless:
// user history plays no part.
type CumulativePolicy struct {
	Individual config.ScoreLadder
	Cumulative config.ScoreLadder
}

func NewCumulativePolicy(cfg config.Config) CumulativePolicy {
	return CumulativePolicy{
		Individual: cfg.Individual,
		Cumulative: cfg.Cumulative,
	}
}

// Tiers are checked from most to least severe; the first tier where either the max score or the normalized
// cumulative score reaches its threshold wins.
func (p CumulativePolicy) Decide(sum scoring.Summary) Action {
	tiers := []struct {
		action     Action
		individual float64
		cumulative float64
	}{
		{Ban, p.Individual.Ban, p.Cumulative.Ban},
		{Mute, p.Individual.Mute, p.Cumulative.Mute},
		{Delete, p.Individual.Delete, p.Cumulative.Delete},
		{Warn, p.Individual.Warn, p.Cumulative.Warn},
	}
	for _, t := range tiers {
		if sum.MaxScore >= t.individual || sum.NormalizedCumulativeScore >= t.cumulative {
			return t.action
		}
	}
	return Allow
}
