package settingsstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/galaxyguard/warden/automod/cachestore"
	"github.com/galaxyguard/warden/automod/config"
)

var cacheName = "user-settings"

// marker stored for users without an override, so misses are cached too
var cacheNone = "none"

// Read-through cache in front of another SettingsStore. Writes go to the backing store and purge the cache entry.
type CachedSettingsStore struct {
	Store  SettingsStore
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ SettingsStore = (*CachedSettingsStore)(nil)

func NewCachedSettingsStore(store SettingsStore, cache cachestore.CacheStore, logger *slog.Logger) *CachedSettingsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSettingsStore{
		Store:  store,
		Cache:  cache,
		Logger: logger.With("component", "settings-cache"),
	}
}

func (s *CachedSettingsStore) Get(ctx context.Context, userID string) (*config.Override, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	cached, ok, err := s.Cache.Get(ctx, cacheName, userID)
	if err != nil {
		// cache failures degrade to the backing store
		s.Logger.Warn("settings cache read failed", "user", userID, "err", err)
	} else if ok {
		if cached == cacheNone {
			return nil, nil
		}
		var o config.Override
		if err := json.Unmarshal([]byte(cached), &o); err == nil {
			return &o, nil
		}
		s.Logger.Warn("discarding unparsable cached settings", "user", userID)
	}

	o, err := s.Store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	val := cacheNone
	if o != nil {
		raw, err := json.Marshal(o)
		if err != nil {
			return nil, err
		}
		val = string(raw)
	}
	if err := s.Cache.Set(ctx, cacheName, userID, val); err != nil {
		s.Logger.Warn("settings cache write failed", "user", userID, "err", err)
	}
	return o, nil
}

func (s *CachedSettingsStore) Put(ctx context.Context, userID string, o config.Override) error {
	if err := s.Store.Put(ctx, userID, o); err != nil {
		return err
	}
	return s.Cache.Purge(ctx, cacheName, userID)
}

func (s *CachedSettingsStore) Delete(ctx context.Context, userID string) error {
	if err := s.Store.Delete(ctx, userID); err != nil {
		return err
	}
	return s.Cache.Purge(ctx, cacheName, userID)
}
