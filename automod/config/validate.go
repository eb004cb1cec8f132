package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/galaxyguard/warden/automod/moderr"
)

func errMissingCategory(category string) error {
	return moderr.Configuration("config.tiers", "no thresholds configured for category %q", category)
}

// checks that vals are within [0,1] and strictly ascending
func checkAscending(name string, labels []string, vals []float64) error {
	for i, v := range vals {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s.%s: threshold %v out of range [0,1]", name, labels[i], v)
		}
		if i > 0 && !(vals[i-1] < v) {
			return fmt.Errorf("%s: %s (%v) must be greater than %s (%v)", name, labels[i], v, labels[i-1], vals[i-1])
		}
	}
	return nil
}

func (t TierThresholds) validate(name string) error {
	return checkAscending(name, []string{"low", "medium", "high"}, []float64{t.Low, t.Medium, t.High})
}

func (l ActionLadder) validate(name string) error {
	return checkAscending(name,
		[]string{"review", "warn", "mute", "temp_ban", "perm_ban"},
		[]float64{l.Review, l.Warn, l.Mute, l.TempBan, l.PermBan})
}

func (l ScoreLadder) validate(name string) error {
	return checkAscending(name,
		[]string{"warn", "delete", "mute", "ban"},
		[]float64{l.Warn, l.Delete, l.Mute, l.Ban})
}

func (s StrikeLimit) validate(name string) error {
	if s.Limit < 1 {
		return fmt.Errorf("%s.limit must be at least 1", name)
	}
	if s.Window <= 0 {
		return fmt.Errorf("%s.window must be positive", name)
	}
	return nil
}

// Checks all invariants of the configuration. All problems are reported together, wrapped in a single
// configuration error.
func (c Config) Validate() error {
	var errs []error

	if len(c.Categories) == 0 {
		errs = append(errs, fmt.Errorf("categories: at least one category must be configured"))
	}
	// sorted, so that error messages are stable
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			errs = append(errs, fmt.Errorf("categories: empty category name"))
			continue
		}
		if err := c.Categories[name].validate("categories." + name); err != nil {
			errs = append(errs, err)
		}
	}

	for _, err := range []error{
		c.Actions.validate("actions"),
		c.Individual.validate("individual"),
		c.Cumulative.validate("cumulative"),
		c.Strikes.Warn.validate("strikes.warn"),
		c.Strikes.Mute.validate("strikes.mute"),
		c.Strikes.TempBan.validate("strikes.temp_ban"),
	} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if c.Strikes.Decay <= 0 {
		errs = append(errs, fmt.Errorf("strikes.decay must be positive"))
	}

	m := c.Modifiers
	for _, w := range []struct {
		name string
		val  float64
	}{
		{"sensitive_channel", m.SensitiveChannel},
		{"trusted_user", m.TrustedUser},
		{"new_user", m.NewUser},
		{"high_activity", m.HighActivity},
		{"repeat_offense", m.RepeatOffense},
		{"repeat_offense_min_weight", m.RepeatOffenseMinWeight},
		{"trust_threshold", m.TrustThreshold},
	} {
		if w.val < 0 {
			errs = append(errs, fmt.Errorf("modifiers.%s must not be negative", w.name))
		}
	}
	if m.NewUserWindow < 0 {
		errs = append(errs, fmt.Errorf("modifiers.new_user_window must not be negative"))
	}
	if c.Durations.Mute < 0 || c.Durations.TempBan < 0 {
		errs = append(errs, fmt.Errorf("durations must not be negative"))
	}
	if c.Activity.MessagesPerHour < 0 || c.Activity.ChattersPerHour < 0 {
		errs = append(errs, fmt.Errorf("activity thresholds must not be negative"))
	}

	if len(errs) > 0 {
		return moderr.New(moderr.KindConfiguration, "config.validate", errors.Join(errs...))
	}
	return nil
}
