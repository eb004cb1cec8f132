package messagestore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/galaxyguard/warden/automod/action"

	"github.com/google/uuid"
)

var ErrMissingField = errors.New("message is missing a required field")

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	UserID      string `json:"userId"`
	Username    string `json:"username,omitempty"`
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName,omitempty"`
	// eg, "chat", "whisper", "announcement"
	MessageType string   `json:"messageType,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	Badges      []string `json:"badges,omitempty"`

	// nil until the message has been evaluated (or reviewed by hand)
	Moderation *Moderation `json:"moderation,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Outcome recorded against a captured message.
type Moderation struct {
	Action action.Action `json:"action"`
	// flagged category, if any
	Reason   string  `json:"reason,omitempty"`
	Severity float64 `json:"severity"`
	// every category which reached at least the low tier
	Categories []string `json:"categories,omitempty"`
	// "warden" for automated decisions, otherwise the human moderator
	ModeratedBy string    `json:"moderatedBy,omitempty"`
	ModeratedAt time.Time `json:"moderatedAt"`
}

// A message counts as moderated when its recorded action did something. Evaluated-but-allowed messages are not.
func (m *Message) WasModerated() bool {
	return m.Moderation != nil && m.Moderation.Action != action.Allow
}

// Filter for listing messages. Zero values mean "no constraint".
type Query struct {
	ChannelID string
	Since     time.Time
	Until     time.Time
	// only messages where WasModerated() is true
	ModeratedOnly bool
	// messages flagged with any of these categories
	Categories []string
	Limit      int
	Offset     int
}

func (q Query) matches(m *Message) bool {
	if q.ChannelID != "" && m.ChannelID != q.ChannelID {
		return false
	}
	if !q.Since.IsZero() && m.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && m.Timestamp.After(q.Until) {
		return false
	}
	if q.ModeratedOnly && !m.WasModerated() {
		return false
	}
	if len(q.Categories) > 0 {
		if m.Moderation == nil {
			return false
		}
		return slices.ContainsFunc(q.Categories, func(c string) bool {
			return slices.Contains(m.Moderation.Categories, c)
		})
	}
	return true
}

type MessageStore interface {
	// Stores a new message, assigning its ID (and timestamp, if unset). Any Moderation on the input is ignored.
	Create(ctx context.Context, msg Message) (*Message, error)
	// Returns nil (and no error) if there is no such message.
	Get(ctx context.Context, id string) (*Message, error)
	// Replaces the moderation outcome of a message. Returns nil (and no error) if there is no such message.
	SetModeration(ctx context.Context, id string, mod Moderation) (*Message, error)
	// Matching messages, newest first.
	List(ctx context.Context, q Query) ([]*Message, error)
}

func prepareMessage(msg Message, now time.Time) (Message, error) {
	if msg.Content == "" || msg.UserID == "" || msg.ChannelID == "" {
		return Message{}, ErrMissingField
	}
	msg.ID = uuid.NewString()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.Timestamp = msg.Timestamp.UTC()
	if msg.MessageType == "" {
		msg.MessageType = "chat"
	}
	msg.Badges = slices.Clone(msg.Badges)
	msg.Moderation = nil
	msg.CreatedAt = now
	return msg, nil
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
