package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/galaxyguard/warden/automod/messagestore"
	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/scoring"
)

const (
	DefaultChannelMessageLimit = 100
	DefaultTrainingDataLimit   = 1000
	MaxMessageLimit            = 5000
	// recorded as the moderator of automated decisions
	AutomatedModerator = "warden"
)

// A captured message together with the decision made about it.
type Capture struct {
	Message    *messagestore.Message `json:"message"`
	Moderation *Result               `json:"moderation"`
}

func (eng *Engine) messageStore(op string) (messagestore.MessageStore, error) {
	if eng.Messages == nil {
		return nil, moderr.Configuration(op, "no message store configured")
	}
	return eng.Messages, nil
}

// Stores a chat message, moderates it, and writes the outcome back on to the stored message.
//
// The message is stored before the oracle is called. If moderation fails, the message stays stored without a
// moderation outcome and the error is returned.
func (eng *Engine) CaptureAndModerate(ctx context.Context, msg messagestore.Message, mctx scoring.Context) (*Capture, error) {
	op := "engine.capture"
	ms, err := eng.messageStore(op)
	if err != nil {
		return nil, err
	}
	msg.UserID = strings.TrimSpace(msg.UserID)
	msg.ChannelID = strings.TrimSpace(msg.ChannelID)
	switch {
	case strings.TrimSpace(msg.Content) == "":
		return nil, moderr.Validation(op, "content is empty")
	case msg.UserID == "":
		return nil, moderr.Validation(op, "user id is empty")
	case msg.ChannelID == "":
		return nil, moderr.Validation(op, "channel id is empty")
	}
	if mctx.ChannelID == "" {
		mctx.ChannelID = msg.ChannelID
	}

	saved, err := ms.Create(ctx, msg)
	if err != nil {
		return nil, moderr.Dependency("engine.messages", fmt.Errorf("storing message: %w", err))
	}

	res, err := eng.Evaluate(ctx, saved.Content, mctx, saved.UserID)
	if err != nil {
		eng.logger().Warn("captured message was not moderated", "message", saved.ID, "user", saved.UserID, "err", err)
		return nil, err
	}

	updated, err := ms.SetModeration(ctx, saved.ID, messagestore.Moderation{
		Action:      res.Action,
		Reason:      res.Analysis.FlaggedCategory,
		Severity:    res.Severity,
		Categories:  res.Analysis.FlaggedCategories(),
		ModeratedBy: AutomatedModerator,
		ModeratedAt: eng.now(),
	})
	if err != nil {
		return nil, moderr.Dependency("engine.messages", fmt.Errorf("recording moderation: %w", err))
	}
	if updated == nil {
		// deleted out from under us; still report the decision
		updated = saved
	}
	return &Capture{Message: updated, Moderation: res}, nil
}

func (eng *Engine) GetMessage(ctx context.Context, id string) (*messagestore.Message, error) {
	op := "engine.messages"
	ms, err := eng.messageStore(op)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, moderr.Validation(op, "message id is empty")
	}
	m, err := ms.Get(ctx, id)
	if err != nil {
		return nil, moderr.Dependency(op, err)
	}
	return m, nil
}

// Records a moderation outcome decided outside the engine (eg, by a human moderator). It does not touch the
// sender's infraction history. Returns nil if there is no such message.
func (eng *Engine) ReviewMessage(ctx context.Context, id string, mod messagestore.Moderation) (*messagestore.Message, error) {
	op := "engine.review"
	ms, err := eng.messageStore(op)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, moderr.Validation(op, "message id is empty")
	}
	if strings.TrimSpace(mod.ModeratedBy) == "" {
		return nil, moderr.Validation(op, "moderator is required")
	}
	if mod.Severity < 0 || mod.Severity > 1 {
		return nil, moderr.Validation(op, "severity must be between 0 and 1")
	}
	if mod.ModeratedAt.IsZero() {
		mod.ModeratedAt = eng.now()
	}
	m, err := ms.SetModeration(ctx, id, mod)
	if err != nil {
		return nil, moderr.Dependency(op, err)
	}
	return m, nil
}

func clampMessageLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxMessageLimit)
}

// Messages captured in one channel, newest first.
func (eng *Engine) ChannelMessages(ctx context.Context, channelID string, q messagestore.Query) ([]*messagestore.Message, error) {
	op := "engine.messages"
	ms, err := eng.messageStore(op)
	if err != nil {
		return nil, err
	}
	q.ChannelID = strings.TrimSpace(channelID)
	if q.ChannelID == "" {
		return nil, moderr.Validation(op, "channel id is empty")
	}
	q.Limit = clampMessageLimit(q.Limit, DefaultChannelMessageLimit)
	out, err := ms.List(ctx, q)
	if err != nil {
		return nil, moderr.Dependency(op, err)
	}
	return out, nil
}

// Captured messages across all channels, with their moderation outcomes as labels.
func (eng *Engine) TrainingData(ctx context.Context, q messagestore.Query) ([]*messagestore.Message, error) {
	op := "engine.training"
	ms, err := eng.messageStore(op)
	if err != nil {
		return nil, err
	}
	q.Limit = clampMessageLimit(q.Limit, DefaultTrainingDataLimit)
	out, err := ms.List(ctx, q)
	if err != nil {
		return nil, moderr.Dependency(op, err)
	}
	return out, nil
}
