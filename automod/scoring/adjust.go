package scoring

import (
	"github.com/galaxyguard/warden/automod/config"
)

const ChannelSensitive = "sensitive"
const ChannelNormal = "normal"

// Situation a message was sent in.
type Context struct {
	ChannelType    string `json:"channelType,omitempty"`
	ChannelID      string `json:"channelId,omitempty"`
	IsHighActivity bool   `json:"isHighActivity"`
}

// Facts about the sender, derived from their history.
type Signals struct {
	TrustScore   float64
	IsNewUser    bool
	StrikeWeight float64
}

type Adjustment struct {
	Base     float64  `json:"base"`
	Severity float64  `json:"severity"`
	Applied  []string `json:"applied,omitempty"`
}

// Context Adjuster. Every modifier is a fraction of the *original* base severity, so the result does not depend on
// the order modifiers are applied in. The sum is clamped to [0,1] once, at the end.
type Adjuster struct {
	Modifiers config.Modifiers
}

func NewAdjuster(cfg config.Config) Adjuster {
	return Adjuster{Modifiers: cfg.Modifiers}
}

func (a Adjuster) Adjust(base float64, c Context, s Signals) float64 {
	return a.AdjustDetail(base, c, s).Severity
}

func (a Adjuster) AdjustDetail(base float64, c Context, s Signals) Adjustment {
	m := a.Modifiers
	out := Adjustment{Base: base}
	delta := 0.0
	if c.ChannelType == ChannelSensitive && m.SensitiveChannel != 0 {
		delta += base * m.SensitiveChannel
		out.Applied = append(out.Applied, "sensitive-channel")
	}
	if s.TrustScore > m.TrustThreshold && m.TrustedUser != 0 {
		delta -= base * m.TrustedUser
		out.Applied = append(out.Applied, "trusted-user")
	}
	if s.IsNewUser && m.NewUser != 0 {
		delta += base * m.NewUser
		out.Applied = append(out.Applied, "new-user")
	}
	if c.IsHighActivity && m.HighActivity != 0 {
		delta += base * m.HighActivity
		out.Applied = append(out.Applied, "high-activity")
	}
	if m.RepeatOffense != 0 && s.StrikeWeight >= m.RepeatOffenseMinWeight {
		delta += base * m.RepeatOffense
		out.Applied = append(out.Applied, "repeat-offense")
	}
	out.Severity = min(1, max(0, base+delta))
	return out
}
