package scoring

import (
	"fmt"

	"github.com/galaxyguard/warden/automod/config"
)

// Discrete severity tier for a single category. Ordered: a higher tier is always more severe.
type Tier int

const (
	TierNone Tier = iota
	TierLow
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "none"
	}
}

func ParseTier(s string) (Tier, error) {
	switch s {
	case "none":
		return TierNone, nil
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	}
	return TierNone, fmt.Errorf("unknown severity tier: %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Highest matching threshold wins.
func Classify(score float64, t config.TierThresholds) Tier {
	switch {
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	case score >= t.Low:
		return TierLow
	default:
		return TierNone
	}
}

// Classifies a category score using the configured thresholds for that category. Fails with a configuration error
// if the category has none.
func ClassifyCategory(cfg config.Config, category string, score float64) (Tier, error) {
	t, err := cfg.TiersFor(category)
	if err != nil {
		return TierNone, err
	}
	return Classify(clampScore(score), t), nil
}
