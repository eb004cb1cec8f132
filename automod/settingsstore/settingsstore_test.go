package settingsstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/galaxyguard/warden/automod/cachestore"
	"github.com/galaxyguard/warden/automod/config"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testOverride() config.Override {
	return config.Override{
		Categories: map[string]config.TierThresholds{
			config.CategorySpam: {Low: 0.2, Medium: 0.3, High: 0.4},
		},
		Cumulative: &config.ScoreLadder{Warn: 0.1, Delete: 0.2, Mute: 0.3, Ban: 0.4},
	}
}

func testSettingsStore(t *testing.T, ss SettingsStore) {
	assert := assert.New(t)
	ctx := context.Background()

	o, err := ss.Get(ctx, "user1")
	assert.NoError(err)
	assert.Nil(o)

	_, err = ss.Get(ctx, "")
	assert.ErrorIs(err, ErrEmptyUserID)

	assert.NoError(ss.Put(ctx, "user1", testOverride()))
	o, err = ss.Get(ctx, "user1")
	assert.NoError(err)
	if assert.NotNil(o) {
		assert.Equal(testOverride(), *o)
	}

	// replace
	assert.NoError(ss.Put(ctx, "user1", config.Override{Individual: &config.ScoreLadder{Warn: 0.1, Delete: 0.2, Mute: 0.3, Ban: 0.4}}))
	o, err = ss.Get(ctx, "user1")
	assert.NoError(err)
	if assert.NotNil(o) {
		assert.Nil(o.Cumulative)
		assert.NotNil(o.Individual)
	}

	assert.NoError(ss.Delete(ctx, "user1"))
	o, err = ss.Get(ctx, "user1")
	assert.NoError(err)
	assert.Nil(o)
}

func TestMemSettingsStore(t *testing.T) {
	testSettingsStore(t, NewMemSettingsStore())
}

func TestMemSettingsStoreCopies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSettingsStore()
	assert.NoError(ss.Put(ctx, "user1", testOverride()))
	o, err := ss.Get(ctx, "user1")
	assert.NoError(err)
	o.Cumulative.Warn = 0.9
	o.Categories[config.CategorySpam] = config.TierThresholds{}

	again, err := ss.Get(ctx, "user1")
	assert.NoError(err)
	assert.Equal(testOverride(), *again)
}

func TestGormSettingsStore(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	ss, err := NewGormSettingsStore(db)
	if err != nil {
		t.Fatal(err)
	}
	testSettingsStore(t, ss)
}

// counts reads which reach the backing store
type countingStore struct {
	SettingsStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, userID string) (*config.Override, error) {
	s.gets++
	return s.SettingsStore.Get(ctx, userID)
}

func TestCachedSettingsStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	backing := &countingStore{SettingsStore: NewMemSettingsStore()}
	ss := NewCachedSettingsStore(backing, cachestore.NewMemCacheStore(100, time.Minute), nil)
	testSettingsStore(t, ss)

	backing.gets = 0
	assert.NoError(ss.Put(ctx, "user2", testOverride()))
	for i := 0; i < 3; i++ {
		o, err := ss.Get(ctx, "user2")
		assert.NoError(err)
		assert.Equal(testOverride(), *o)
	}
	assert.Equal(1, backing.gets)

	// misses are cached as well
	for i := 0; i < 3; i++ {
		o, err := ss.Get(ctx, "user3")
		assert.NoError(err)
		assert.Nil(o)
	}
	assert.Equal(2, backing.gets)

	// writes invalidate
	assert.NoError(ss.Put(ctx, "user3", testOverride()))
	o, err := ss.Get(ctx, "user3")
	assert.NoError(err)
	assert.NotNil(o)
	assert.Equal(3, backing.gets)
}
