package engine

import (
	"context"
	"testing"
	"time"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/messagestore"
	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/oracle"
	"github.com/galaxyguard/warden/automod/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(user, channel, content string) messagestore.Message {
	return messagestore.Message{
		Content:     content,
		UserID:      user,
		Username:    user + "-name",
		ChannelID:   channel,
		ChannelName: "#" + channel,
	}
}

func TestCaptureAndModerate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, now := testEngine(scoring.ScoreMap{
		{Category: "harassment", Score: 0.45},
		{Category: "hate", Score: 0.41},
		{Category: "spam", Score: 0.02},
	})
	eng.Messages.(*messagestore.MemMessageStore).Now = func() time.Time { return *now }
	establish(t, eng, now, "user1")

	capt, err := eng.CaptureAndModerate(ctx, testMessage("user1", "general", "you are awful"), scoring.Context{})
	require.NoError(t, err)
	res := capt.Moderation
	assert.Equal(action.Warn, res.Action)
	// the message channel is used as the moderation context
	assert.Equal("general", res.Context.ChannelID)

	msg := capt.Message
	require.NotNil(t, msg.Moderation)
	assert.True(msg.WasModerated())
	assert.Equal(action.Warn, msg.Moderation.Action)
	assert.Equal("harassment", msg.Moderation.Reason)
	assert.Equal(0.45, msg.Moderation.Severity)
	assert.Equal([]string{"harassment", "hate"}, msg.Moderation.Categories)
	assert.Equal(AutomatedModerator, msg.Moderation.ModeratedBy)

	stored, err := eng.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(msg.Moderation.Action, stored.Moderation.Action)

	// allowed messages are captured with their outcome, but do not count as moderated
	eng.Oracle = &oracle.Static{Scores: scoring.ScoreMap{}}
	*now = now.Add(time.Minute)
	capt, err = eng.CaptureAndModerate(ctx, testMessage("user1", "general", "good morning"), scoring.Context{})
	require.NoError(t, err)
	assert.Equal(action.Allow, capt.Message.Moderation.Action)
	assert.False(capt.Message.WasModerated())

	msgs, err := eng.ChannelMessages(ctx, "general", messagestore.Query{})
	require.NoError(t, err)
	if assert.Len(msgs, 2) {
		assert.Equal("good morning", msgs[0].Content)
	}
	msgs, err = eng.ChannelMessages(ctx, "general", messagestore.Query{ModeratedOnly: true})
	require.NoError(t, err)
	assert.Len(msgs, 1)

	training, err := eng.TrainingData(ctx, messagestore.Query{Categories: []string{"hate"}})
	require.NoError(t, err)
	if assert.Len(training, 1) {
		assert.Equal("you are awful", training[0].Content)
	}
}

func TestCaptureAndModerateFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(nil)

	_, err := eng.CaptureAndModerate(ctx, testMessage("user1", "", "hi"), scoring.Context{})
	assert.True(moderr.Is(err, moderr.KindValidation))
	_, err = eng.CaptureAndModerate(ctx, testMessage("", "general", "hi"), scoring.Context{})
	assert.True(moderr.Is(err, moderr.KindValidation))

	// oracle failure: the message is kept, without an outcome
	eng.Oracle = &oracle.Static{Err: moderr.Malformed("oracle.parse", "response has no results")}
	_, err = eng.CaptureAndModerate(ctx, testMessage("user1", "general", "hi"), scoring.Context{})
	assert.True(moderr.Is(err, moderr.KindMalformed))
	msgs, err := eng.ChannelMessages(ctx, "general", messagestore.Query{})
	require.NoError(t, err)
	if assert.Len(msgs, 1) {
		assert.Nil(msgs[0].Moderation)
	}

	eng.Messages = nil
	_, err = eng.CaptureAndModerate(ctx, testMessage("user1", "general", "hi"), scoring.Context{})
	assert.True(moderr.Is(err, moderr.KindConfiguration))
	_, err = eng.TrainingData(ctx, messagestore.Query{})
	assert.True(moderr.Is(err, moderr.KindConfiguration))
}

func TestReviewMessage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(scoring.ScoreMap{{Category: "spam", Score: 0.05}})

	capt, err := eng.CaptureAndModerate(ctx, testMessage("user1", "general", "check out my stream"), scoring.Context{})
	require.NoError(t, err)
	assert.Equal(action.Allow, capt.Message.Moderation.Action)

	_, err = eng.ReviewMessage(ctx, capt.Message.ID, messagestore.Moderation{Action: action.Delete})
	assert.True(moderr.Is(err, moderr.KindValidation))

	m, err := eng.ReviewMessage(ctx, capt.Message.ID, messagestore.Moderation{
		Action:      action.Delete,
		Reason:      "spam",
		Severity:    0.6,
		Categories:  []string{"spam"},
		ModeratedBy: "mod-alice",
	})
	require.NoError(t, err)
	assert.Equal(action.Delete, m.Moderation.Action)
	assert.Equal("mod-alice", m.Moderation.ModeratedBy)
	assert.True(m.WasModerated())

	// manual review does not create an infraction
	h, err := eng.History.Get(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(0, h.TotalInfractions)

	m, err = eng.ReviewMessage(ctx, "no-such-message", messagestore.Moderation{Action: action.Delete, ModeratedBy: "mod-alice"})
	assert.NoError(err)
	assert.Nil(m)
}
