package messagestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/galaxyguard/warden/automod/action"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testMessageStoreBasics(t *testing.T, ms MessageStore) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	_, err := ms.Create(ctx, Message{Content: "", UserID: "user1", ChannelID: "chan1"})
	assert.ErrorIs(err, ErrMissingField)

	var ids []string
	for i := 0; i < 3; i++ {
		m, err := ms.Create(ctx, Message{
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: testEpoch.Add(time.Duration(i) * time.Minute),
			UserID:    "user1",
			Username:  "alice",
			ChannelID: "chan1",
			Badges:    []string{"subscriber"},
			// ignored on create
			Moderation: &Moderation{Action: action.Ban},
		})
		require.NoError(err)
		assert.NotEmpty(m.ID)
		assert.Equal("chat", m.MessageType)
		assert.Nil(m.Moderation)
		ids = append(ids, m.ID)
	}
	_, err = ms.Create(ctx, Message{Content: "elsewhere", UserID: "user2", ChannelID: "chan2"})
	require.NoError(err)

	m, err := ms.Get(ctx, ids[0])
	require.NoError(err)
	require.NotNil(m)
	assert.Equal("message 0", m.Content)
	assert.Equal([]string{"subscriber"}, m.Badges)
	assert.True(testEpoch.Equal(m.Timestamp))
	assert.False(m.WasModerated())

	m, err = ms.Get(ctx, "no-such-message")
	assert.NoError(err)
	assert.Nil(m)

	m, err = ms.SetModeration(ctx, ids[1], Moderation{
		Action:      action.Warn,
		Reason:      "harassment",
		Severity:    0.45,
		Categories:  []string{"harassment"},
		ModeratedBy: "warden",
		ModeratedAt: testEpoch.Add(time.Hour),
	})
	require.NoError(err)
	require.NotNil(m)
	require.NotNil(m.Moderation)
	assert.Equal(action.Warn, m.Moderation.Action)
	assert.Equal([]string{"harassment"}, m.Moderation.Categories)
	assert.True(testEpoch.Add(time.Hour).Equal(m.Moderation.ModeratedAt))
	assert.True(m.WasModerated())

	// evaluated, but allowed
	_, err = ms.SetModeration(ctx, ids[2], Moderation{Action: action.Allow, ModeratedBy: "warden"})
	require.NoError(err)

	m, err = ms.SetModeration(ctx, "no-such-message", Moderation{Action: action.Warn})
	assert.NoError(err)
	assert.Nil(m)

	all, err := ms.List(ctx, Query{ChannelID: "chan1"})
	require.NoError(err)
	if assert.Len(all, 3) {
		assert.Equal(ids[2], all[0].ID)
		assert.Equal(ids[0], all[2].ID)
	}

	moderated, err := ms.List(ctx, Query{ChannelID: "chan1", ModeratedOnly: true})
	require.NoError(err)
	if assert.Len(moderated, 1) {
		assert.Equal(ids[1], moderated[0].ID)
	}

	flagged, err := ms.List(ctx, Query{Categories: []string{"spam", "harassment"}})
	require.NoError(err)
	assert.Len(flagged, 1)

	flagged, err = ms.List(ctx, Query{Categories: []string{"spam"}})
	require.NoError(err)
	assert.Empty(flagged)

	recent, err := ms.List(ctx, Query{ChannelID: "chan1", Since: testEpoch.Add(time.Minute)})
	require.NoError(err)
	assert.Len(recent, 2)

	window, err := ms.List(ctx, Query{ChannelID: "chan1", Until: testEpoch.Add(time.Minute)})
	require.NoError(err)
	assert.Len(window, 2)

	page, err := ms.List(ctx, Query{ChannelID: "chan1", Limit: 1, Offset: 1})
	require.NoError(err)
	if assert.Len(page, 1) {
		assert.Equal(ids[1], page[0].ID)
	}
}

func TestMemMessageStore(t *testing.T) {
	ms := NewMemMessageStore()
	ms.Now = func() time.Time { return testEpoch }
	testMessageStoreBasics(t, ms)
}

func TestGormMessageStore(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqldb, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	ms, err := NewGormMessageStore(db)
	if err != nil {
		t.Fatal(err)
	}
	ms.Now = func() time.Time { return testEpoch }
	testMessageStoreBasics(t, ms)
}

func TestCategoriesEncoding(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("", encodeCategories(nil))
	assert.Equal(",hate,spam,", encodeCategories([]string{"hate", "spam"}))
	assert.Equal([]string{"hate", "spam"}, decodeCategories(",hate,spam,"))
	assert.Nil(decodeCategories(""))
}
