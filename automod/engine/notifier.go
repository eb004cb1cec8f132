package engine

import (
	"context"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/countstore"
)

const (
	// number of notifications sent per day, for all users combined (circuit breaker)
	QuotaNotifyDay = 50
	// least severe action which triggers a notification
	NotifyMinAction = action.TempBan
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendDecision(ctx context.Context, r *Result) error
}

// Notification failures never fail the evaluation; the action was already decided and recorded.
func (eng *Engine) notify(ctx context.Context, r *Result) {
	if eng.Notifier == nil || r.Action < NotifyMinAction {
		return
	}
	if eng.Counters != nil {
		c, err := eng.Counters.GetCount(ctx, "automod-quota", "notify", countstore.PeriodDay)
		if err != nil {
			r.Logger.Warn("failed to read notification quota", "err", err)
			return
		}
		if c >= QuotaNotifyDay {
			r.Logger.Warn("CIRCUIT BREAKER: automod notifications")
			return
		}
		if err := eng.Counters.Increment(ctx, "automod-quota", "notify"); err != nil {
			r.Logger.Warn("failed to increment notification quota", "err", err)
		}
	}
	if err := eng.Notifier.SendDecision(ctx, r); err != nil {
		notifyErrors.Inc()
		r.Logger.Error("failed to send notification", "err", err)
	}
}
