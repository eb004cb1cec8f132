package config

import (
	"maps"
)

// Per-user threshold settings. Same shape as the corresponding parts of Config, but every part is optional: nil (or
// absent category) means "use the global value".
type Override struct {
	Categories map[string]TierThresholds `yaml:"categories,omitempty" json:"categories,omitempty"`
	Actions    *ActionLadder             `yaml:"actions,omitempty" json:"actions,omitempty"`
	Individual *ScoreLadder              `yaml:"individual,omitempty" json:"individual,omitempty"`
	Cumulative *ScoreLadder              `yaml:"cumulative,omitempty" json:"cumulative,omitempty"`
}

func (o *Override) IsEmpty() bool {
	return o == nil || (len(o.Categories) == 0 && o.Actions == nil && o.Individual == nil && o.Cumulative == nil)
}

// Returns a new Config with the override applied. The receiver is not modified. The merged config is validated, so
// an override can not produce an inconsistent threshold set.
func (c Config) WithOverride(o *Override) (Config, error) {
	if o.IsEmpty() {
		return c, nil
	}
	out := c.Clone()
	if len(o.Categories) > 0 {
		if out.Categories == nil {
			out.Categories = make(map[string]TierThresholds, len(o.Categories))
		}
		maps.Copy(out.Categories, o.Categories)
	}
	if o.Actions != nil {
		out.Actions = *o.Actions
	}
	if o.Individual != nil {
		out.Individual = *o.Individual
	}
	if o.Cumulative != nil {
		out.Cumulative = *o.Cumulative
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}
