package config

import (
	"time"
)

const day = 24 * time.Hour

// Category names used by the default threshold table.
const (
	CategoryHate       = "hate"
	CategoryHarassment = "harassment"
	CategorySexual     = "sexual"
	CategoryViolence   = "violence"
	CategorySelfHarm   = "self-harm"
	CategorySpam       = "spam"
	CategoryIllicit    = "illicit"
)

// Returns a fresh copy of the built-in configuration.
func Default() Config {
	return Config{
		Categories: map[string]TierThresholds{
			CategoryHate:       {Low: 0.4, Medium: 0.7, High: 0.85},
			CategoryHarassment: {Low: 0.4, Medium: 0.7, High: 0.85},
			CategorySexual:     {Low: 0.5, Medium: 0.75, High: 0.9},
			CategoryViolence:   {Low: 0.5, Medium: 0.75, High: 0.9},
			CategorySelfHarm:   {Low: 0.3, Medium: 0.6, High: 0.8},
			CategorySpam:       {Low: 0.6, Medium: 0.8, High: 0.9},
			// the OpenAI moderation endpoint reports this one too
			CategoryIllicit: {Low: 0.4, Medium: 0.7, High: 0.85},
		},
		Actions: ActionLadder{
			Review:  0.1,
			Warn:    0.3,
			Mute:    0.5,
			TempBan: 0.7,
			PermBan: 0.9,
		},
		Individual: ScoreLadder{
			Warn:   0.3,
			Delete: 0.5,
			Mute:   0.7,
			Ban:    0.9,
		},
		Cumulative: ScoreLadder{
			Warn:   0.2,
			Delete: 0.3,
			Mute:   0.5,
			Ban:    0.7,
		},
		Strikes: Strikes{
			Decay:   Window(30 * day),
			Warn:    StrikeLimit{Limit: 3, Window: Window(7 * day)},
			Mute:    StrikeLimit{Limit: 2, Window: Window(30 * day)},
			TempBan: StrikeLimit{Limit: 2, Window: Window(90 * day)},
		},
		Modifiers: Modifiers{
			SensitiveChannel:       0.2,
			TrustedUser:            0.2,
			NewUser:                0.1,
			HighActivity:           0.15,
			RepeatOffense:          0,
			RepeatOffenseMinWeight: 1.0,
			TrustThreshold:         50,
			NewUserWindow:          Window(5 * day),
		},
		Durations: Durations{
			Mute:    Window(24 * time.Hour),
			TempBan: Window(168 * time.Hour),
		},
		Activity: Activity{
			MessagesPerHour: 600,
			ChattersPerHour: 0,
		},
		LogReview: false,
	}
}
