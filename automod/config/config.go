// Threshold configuration for the moderation engine.
//
// A Config is loaded once (from defaults and optionally a YAML file), validated, and then passed by value into the
// components that need it. Nothing in this package keeps global mutable state: per-user overrides produce a new
// Config rather than modifying the shared one.
package config

import (
	"maps"
)

// Score thresholds which classify a single category score in to a severity tier.
type TierThresholds struct {
	Low    float64 `yaml:"low" json:"low"`
	Medium float64 `yaml:"medium" json:"medium"`
	High   float64 `yaml:"high" json:"high"`
}

// Minimum adjusted severity for each action of the graduated (six-step) ladder. Anything below Review is "allow".
type ActionLadder struct {
	Review  float64 `yaml:"review" json:"review"`
	Warn    float64 `yaml:"warn" json:"warn"`
	Mute    float64 `yaml:"mute" json:"mute"`
	TempBan float64 `yaml:"temp_ban" json:"temp_ban"`
	PermBan float64 `yaml:"perm_ban" json:"perm_ban"`
}

// Minimum score for each action of the five-step max/cumulative scheme. Used twice: once against the single highest
// category score ("individual") and once against the average over all categories ("cumulative").
type ScoreLadder struct {
	Warn   float64 `yaml:"warn" json:"warn"`
	Delete float64 `yaml:"delete" json:"delete"`
	Mute   float64 `yaml:"mute" json:"mute"`
	Ban    float64 `yaml:"ban" json:"ban"`
}

// Escalate when a user already has at least Limit infractions of this type within Window.
type StrikeLimit struct {
	Limit  int    `yaml:"limit" json:"limit"`
	Window Window `yaml:"window" json:"window"`
}

type Strikes struct {
	// time constant for exponential decay of strike weight
	Decay   Window      `yaml:"decay" json:"decay"`
	Warn    StrikeLimit `yaml:"warn" json:"warn"`
	Mute    StrikeLimit `yaml:"mute" json:"mute"`
	TempBan StrikeLimit `yaml:"temp_ban" json:"temp_ban"`
}

// Context modifier weights. Each weight is a fraction of the base severity (not a flat addition).
type Modifiers struct {
	SensitiveChannel float64 `yaml:"sensitive_channel" json:"sensitive_channel"`
	// subtracted from severity when the user's trust score is above TrustThreshold
	TrustedUser  float64 `yaml:"trusted_user" json:"trusted_user"`
	NewUser      float64 `yaml:"new_user" json:"new_user"`
	HighActivity float64 `yaml:"high_activity" json:"high_activity"`
	// disabled (zero) by default
	RepeatOffense          float64 `yaml:"repeat_offense" json:"repeat_offense"`
	RepeatOffenseMinWeight float64 `yaml:"repeat_offense_min_weight" json:"repeat_offense_min_weight"`
	TrustThreshold         float64 `yaml:"trust_threshold" json:"trust_threshold"`
	NewUserWindow          Window  `yaml:"new_user_window" json:"new_user_window"`
}

// How long mutes and temporary bans last once applied by the caller.
type Durations struct {
	Mute    Window `yaml:"mute" json:"mute"`
	TempBan Window `yaml:"temp_ban" json:"temp_ban"`
}

// When a channel counts as "high activity". A zero value disables that signal.
type Activity struct {
	MessagesPerHour int `yaml:"messages_per_hour" json:"messages_per_hour"`
	ChattersPerHour int `yaml:"chatters_per_hour" json:"chatters_per_hour"`
}

type Config struct {
	Categories map[string]TierThresholds `yaml:"categories" json:"categories"`
	Actions    ActionLadder              `yaml:"actions" json:"actions"`
	Individual ScoreLadder               `yaml:"individual" json:"individual"`
	Cumulative ScoreLadder               `yaml:"cumulative" json:"cumulative"`
	Strikes    Strikes                   `yaml:"strikes" json:"strikes"`
	Modifiers  Modifiers                 `yaml:"modifiers" json:"modifiers"`
	Durations  Durations                 `yaml:"durations" json:"durations"`
	Activity   Activity                  `yaml:"activity" json:"activity"`
	// record "review" outcomes as infractions. allow is never recorded
	LogReview bool `yaml:"log_review" json:"log_review"`
}

// Returns a deep copy, safe to hand to another component.
func (c Config) Clone() Config {
	out := c
	out.Categories = maps.Clone(c.Categories)
	return out
}

// Looks up the tier thresholds for a category. A missing category is a configuration error: callers should not fall
// back to some default.
func (c Config) TiersFor(category string) (TierThresholds, error) {
	t, ok := c.Categories[category]
	if !ok {
		return TierThresholds{}, errMissingCategory(category)
	}
	return t, nil
}
