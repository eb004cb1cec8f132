package engine

import (
	"log/slog"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/automod/strikes"
)

// Outcome of moderating a single message.
type Result struct {
	Policy  Policy          `json:"policy"`
	UserID  string          `json:"userId"`
	Action  action.Action   `json:"action"`
	Context scoring.Context `json:"context"`
	// action implied by severity alone, before escalation
	BaseAction action.Action    `json:"baseAction"`
	Escalated  bool             `json:"escalated"`
	Scores     scoring.ScoreMap `json:"scores"`
	Analysis   scoring.Analysis `json:"analysis"`
	Summary    scoring.Summary  `json:"summary"`
	// highest raw category score
	Severity         float64 `json:"severity"`
	AdjustedSeverity float64 `json:"adjustedSeverity"`
	// labels of the context modifiers which applied
	Modifiers    []string `json:"modifiers,omitempty"`
	StrikeWeight float64  `json:"strikeWeight"`
	// enforcement length, for mute and temp_ban
	Duration config.Window `json:"duration,omitempty"`
	// the recorded infraction, if any
	Infraction *strikes.Infraction `json:"infraction,omitempty"`

	Logger *slog.Logger `json:"-"`
}

func (r *Result) CanonicalLogLine() {
	if r.Logger == nil {
		return
	}
	r.Logger.Info("automod evaluation",
		"policy", r.Policy,
		"action", r.Action.String(),
		"base", r.BaseAction.String(),
		"escalated", r.Escalated,
		"severity", r.Severity,
		"adjustedSeverity", r.AdjustedSeverity,
		"category", r.Analysis.FlaggedCategory,
		"modifiers", r.Modifiers,
		"strikeWeight", r.StrikeWeight,
		"recorded", r.Infraction != nil,
	)
}

// Result of the stateless cumulative evaluation of a score map.
type CumulativeResult struct {
	Action          action.Action `json:"action"`
	HighestSeverity float64       `json:"highestSeverity"`
	// empty when every score is zero
	HighestCategory string `json:"highestCategory"`
	// normalized by the number of categories
	CumulativeScore float64 `json:"cumulativeScore"`
}
