// Automod component for per-user threshold overrides.
//
// Overrides are merged onto the global config by the engine (config.Config.WithOverride). Implementations use
// in-process memory or SQL, and CachedSettingsStore adds a cachestore.CacheStore in front of either.
package settingsstore

import (
	"context"
	"errors"

	"github.com/galaxyguard/warden/automod/config"
)

var ErrEmptyUserID = errors.New("user id is required")

type SettingsStore interface {
	// Returns nil (and no error) when the user has no override.
	Get(ctx context.Context, userID string) (*config.Override, error)
	Put(ctx context.Context, userID string, o config.Override) error
	Delete(ctx context.Context, userID string) error
}
