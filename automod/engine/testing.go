package engine

import (
	"log/slog"

	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/countstore"
	"github.com/galaxyguard/warden/automod/historystore"
	"github.com/galaxyguard/warden/automod/messagestore"
	"github.com/galaxyguard/warden/automod/oracle"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/automod/setstore"
	"github.com/galaxyguard/warden/automod/settingsstore"
)

// Engine with default config and in-memory stores. The oracle returns an empty score map until replaced. Channel
// "support" is in the sensitive channel set.
func EngineTestFixture() Engine {
	sets := setstore.NewMemSetStore()
	sets.Add(setstore.SensitiveChannels, "support")
	return Engine{
		Logger:   slog.Default(),
		Config:   config.Default(),
		Policy:   PolicyTiered,
		Oracle:   &oracle.Static{Scores: scoring.ScoreMap{}},
		History:  historystore.NewMemHistoryStore(),
		Settings: settingsstore.NewMemSettingsStore(),
		Counters: countstore.NewMemCountStore(),
		Sets:     sets,
		Messages: messagestore.NewMemMessageStore(),
	}
}
