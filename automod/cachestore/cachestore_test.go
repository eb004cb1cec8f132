package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testCacheStore(t *testing.T, cs CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	_, ok, err := cs.Get(ctx, "settings", "user1")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(cs.Set(ctx, "settings", "user1", `{"actions":null}`))
	v, ok, err := cs.Get(ctx, "settings", "user1")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(`{"actions":null}`, v)

	// names are separate namespaces
	_, ok, err = cs.Get(ctx, "other", "user1")
	assert.NoError(err)
	assert.False(ok)

	// empty values are still hits
	assert.NoError(cs.Set(ctx, "settings", "user2", ""))
	_, ok, err = cs.Get(ctx, "settings", "user2")
	assert.NoError(err)
	assert.True(ok)

	assert.NoError(cs.Purge(ctx, "settings", "user1"))
	_, ok, err = cs.Get(ctx, "settings", "user1")
	assert.NoError(err)
	assert.False(ok)

	// purging a missing key is fine
	assert.NoError(cs.Purge(ctx, "settings", "nobody"))
}

func TestMemCacheStore(t *testing.T) {
	testCacheStore(t, NewMemCacheStore(100, time.Minute))
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(100, 10*time.Millisecond)
	assert.NoError(cs.Set(ctx, "settings", "user1", "x"))
	time.Sleep(50 * time.Millisecond)
	_, ok, err := cs.Get(ctx, "settings", "user1")
	assert.NoError(err)
	assert.False(ok)
}

func TestRedisCacheStore(t *testing.T) {
	t.Skip("live test, need redis running locally")

	cs, err := NewRedisCacheStore("redis://localhost:6379/0", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	testCacheStore(t, cs)
}
