package cliutil

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {
	assert := assert.New(t)
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, err := SetupLogger(&buf, "warn", "json")
	assert.NoError(err)
	logger.Info("hidden")
	logger.Warn("shown", "user", "user1")
	assert.NotContains(buf.String(), "hidden")
	assert.Contains(buf.String(), `"user":"user1"`)

	_, err = SetupLogger(&buf, "loud", "json")
	assert.Error(err)
	_, err = SetupLogger(&buf, "info", "xml")
	assert.Error(err)
}

func TestSetupDatabase(t *testing.T) {
	assert := assert.New(t)

	p := filepath.Join(t.TempDir(), "sub", "warden.sqlite")
	db, err := SetupDatabase("sqlite://"+p, 10, nil, false)
	assert.NoError(err)
	if assert.NotNil(db) {
		assert.NoError(db.Exec("SELECT 1").Error)
		sqldb, err := db.DB()
		assert.NoError(err)
		assert.Equal(1, sqldb.Stats().MaxOpenConnections)
		sqldb.Close()
	}

	_, err = SetupDatabase("mysql://localhost/warden", 10, nil, false)
	assert.Error(err)
}
