package action

import (
	"time"

	"github.com/galaxyguard/warden/automod/config"
)

// Source of recent-infraction counts, usually a strikes.Ledger.
type StrikeCounter interface {
	// number of infractions of type a within the last window
	RecentCount(a Action, window time.Duration) int
}

// Outcome of the graduated policy for one message.
type Decision struct {
	// action implied by severity alone
	Base Action `json:"base"`
	// final action after escalation
	Action    Action `json:"action"`
	Escalated bool   `json:"escalated"`
}

// Graduated (six-step) policy: adjusted severity picks a base action, then recent infractions of the same type can
// escalate it by one step. Pure function of its inputs.
type Resolver struct {
	Ladder  config.ActionLadder
	Strikes config.Strikes
}

func NewResolver(cfg config.Config) Resolver {
	return Resolver{
		Ladder:  cfg.Actions,
		Strikes: cfg.Strikes,
	}
}

// Highest qualifying action wins.
func (r Resolver) BaseAction(severity float64) Action {
	l := r.Ladder
	switch {
	case severity >= l.PermBan:
		return PermBan
	case severity >= l.TempBan:
		return TempBan
	case severity >= l.Mute:
		return Mute
	case severity >= l.Warn:
		return Warn
	case severity >= l.Review:
		return Review
	default:
		return Allow
	}
}

// The next step up the ladder for an action, and the strike limit which triggers it. ok is false for actions which
// never escalate.
func (r Resolver) next(a Action) (next Action, limit config.StrikeLimit, ok bool) {
	switch a {
	case Warn:
		return Mute, r.Strikes.Warn, true
	case Mute:
		return TempBan, r.Strikes.Mute, true
	case TempBan:
		return PermBan, r.Strikes.TempBan, true
	}
	return a, config.StrikeLimit{}, false
}

// Escalates a base action by (at most) one step, if the user already reached the configured limit of recent
// infractions of the same type. The escalated action is not re-checked against its own limit.
func (r Resolver) Escalate(base Action, counter StrikeCounter) Action {
	next, limit, ok := r.next(base)
	if !ok || counter == nil {
		return base
	}
	if counter.RecentCount(base, limit.Window.Duration()) >= limit.Limit {
		return next
	}
	return base
}

func (r Resolver) Resolve(severity float64, counter StrikeCounter) Decision {
	base := r.BaseAction(severity)
	final := r.Escalate(base, counter)
	return Decision{
		Base:      base,
		Action:    final,
		Escalated: final != base,
	}
}
