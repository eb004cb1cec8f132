package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	ok, err := ss.InSet(ctx, SensitiveChannels, "chan1")
	assert.NoError(err)
	assert.False(ok)

	ss.Add(SensitiveChannels, "chan1", "chan2")
	ok, err = ss.InSet(ctx, SensitiveChannels, "chan1")
	assert.NoError(err)
	assert.True(ok)

	ss.Remove(SensitiveChannels, "chan1")
	ok, err = ss.InSet(ctx, SensitiveChannels, "chan1")
	assert.NoError(err)
	assert.False(ok)
	ok, err = ss.InSet(ctx, SensitiveChannels, "chan2")
	assert.NoError(err)
	assert.True(ok)
}

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "sets.json")
	assert.NoError(os.WriteFile(p, []byte(`{"sensitive-channels": ["support", "kids"]}`), 0o644))

	ss := NewMemSetStore()
	ss.Add(SensitiveChannels, "stale")
	assert.NoError(ss.LoadFromFileJSON(p))

	ok, err := ss.InSet(ctx, SensitiveChannels, "kids")
	assert.NoError(err)
	assert.True(ok)
	ok, err = ss.InSet(ctx, SensitiveChannels, "stale")
	assert.NoError(err)
	assert.False(ok)

	bad := filepath.Join(t.TempDir(), "bad.json")
	assert.NoError(os.WriteFile(bad, []byte(`[1, 2]`), 0o644))
	assert.Error(ss.LoadFromFileJSON(bad))
	assert.Error(ss.LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}
