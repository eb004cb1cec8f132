package engine

import (
	"context"
	"log/slog"

	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/countstore"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/automod/setstore"
)

const (
	counterChannelMessages = "channel-messages"
	counterChannelChatters = "channel-chatters"
)

// Fills in what the caller left unset: channel type from the sensitive channel set, and high activity from the
// channel's counters. Explicit values from the caller are kept. Store failures are logged and treated as "no".
func (eng *Engine) resolveContext(ctx context.Context, logger *slog.Logger, cfg config.Config, mctx scoring.Context, userID string) scoring.Context {
	if mctx.ChannelID == "" {
		if mctx.ChannelType == "" {
			mctx.ChannelType = scoring.ChannelNormal
		}
		return mctx
	}

	if mctx.ChannelType == "" {
		mctx.ChannelType = scoring.ChannelNormal
		if eng.Sets != nil {
			ok, err := eng.Sets.InSet(ctx, setstore.SensitiveChannels, mctx.ChannelID)
			if err != nil {
				logger.Warn("sensitive channel lookup failed", "err", err)
			} else if ok {
				mctx.ChannelType = scoring.ChannelSensitive
			}
		}
	}

	if eng.Counters != nil {
		if err := eng.recordActivity(ctx, mctx.ChannelID, userID); err != nil {
			logger.Warn("failed to record channel activity", "err", err)
		}
		if !mctx.IsHighActivity {
			high, err := eng.isHighActivity(ctx, cfg.Activity, mctx.ChannelID)
			if err != nil {
				logger.Warn("channel activity lookup failed", "err", err)
			}
			mctx.IsHighActivity = high
		}
	}
	return mctx
}

func (eng *Engine) recordActivity(ctx context.Context, channelID, userID string) error {
	if err := eng.Counters.Increment(ctx, counterChannelMessages, channelID); err != nil {
		return err
	}
	return eng.Counters.IncrementDistinct(ctx, counterChannelChatters, channelID, userID)
}

// A channel is busy when either hourly threshold is reached. Zero thresholds are disabled.
func (eng *Engine) isHighActivity(ctx context.Context, act config.Activity, channelID string) (bool, error) {
	if act.MessagesPerHour > 0 {
		n, err := eng.Counters.GetCount(ctx, counterChannelMessages, channelID, countstore.PeriodHour)
		if err != nil {
			return false, err
		}
		if n >= act.MessagesPerHour {
			return true, nil
		}
	}
	if act.ChattersPerHour > 0 {
		n, err := eng.Counters.GetCountDistinct(ctx, counterChannelChatters, channelID, countstore.PeriodHour)
		if err != nil {
			return false, err
		}
		if n >= act.ChattersPerHour {
			return true, nil
		}
	}
	return false, nil
}
