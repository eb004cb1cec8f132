package scoring

import (
	"sort"

	"github.com/galaxyguard/warden/automod/config"
)

type Analysis struct {
	Categories      map[string]Tier `json:"categories"`
	HighestSeverity float64         `json:"highestSeverity"`
	// empty when nothing scored above zero
	FlaggedCategory string `json:"flaggedCategory"`
}

// Folds oracle sub-categories in to their parents, classifies every category, and picks out the highest severity.
func Analyze(cfg config.Config, scores ScoreMap) (Analysis, Summary, error) {
	folded := scores.Fold()
	out := Analysis{
		Categories: make(map[string]Tier, len(folded)),
	}
	for _, cs := range folded {
		tier, err := ClassifyCategory(cfg, cs.Category, cs.Score)
		if err != nil {
			return Analysis{}, Summary{}, err
		}
		out.Categories[cs.Category] = tier
	}
	sum := Extract(folded)
	out.HighestSeverity = sum.MaxScore
	out.FlaggedCategory = sum.MaxCategory
	return out, sum, nil
}

// Categories at tier low or above, sorted by name.
func (a Analysis) FlaggedCategories() []string {
	var out []string
	for cat, tier := range a.Categories {
		if tier > TierNone {
			out = append(out, cat)
		}
	}
	sort.Strings(out)
	return out
}
