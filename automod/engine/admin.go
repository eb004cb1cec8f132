package engine

import (
	"context"
	"math"
	"strings"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/strikes"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 200
)

// A user's history together with the strike calculations over it, as of now.
type Standing struct {
	History      *strikes.History `json:"history"`
	StrikeWeight float64          `json:"strikeWeight"`
	IsNewUser    bool             `json:"isNewUser"`
	// counts within each action's escalation window
	RecentWarns    int `json:"recentWarns"`
	RecentMutes    int `json:"recentMutes"`
	RecentTempBans int `json:"recentTempBans"`
}

func checkUserID(op, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", moderr.Validation(op, "user id is empty")
	}
	return userID, nil
}

// Returns nil (and no error) for users who have never been moderated. Does not create a history.
func (eng *Engine) Standing(ctx context.Context, userID string) (*Standing, error) {
	userID, err := checkUserID("engine.standing", userID)
	if err != nil {
		return nil, err
	}
	hist, err := eng.History.Get(ctx, userID)
	if err != nil {
		return nil, moderr.Dependency("engine.history", err)
	}
	if hist == nil {
		return nil, nil
	}
	cfg, err := eng.configFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	ledger := strikes.NewLedger(hist, eng.now(), cfg.Strikes.Decay.Duration())
	return &Standing{
		History:        hist,
		StrikeWeight:   ledger.DecayedWeight(),
		IsNewUser:      ledger.IsNewUser(cfg.Modifiers.NewUserWindow.Duration()),
		RecentWarns:    ledger.RecentCount(action.Warn, cfg.Strikes.Warn.Window.Duration()),
		RecentMutes:    ledger.RecentCount(action.Mute, cfg.Strikes.Mute.Window.Duration()),
		RecentTempBans: ledger.RecentCount(action.TempBan, cfg.Strikes.TempBan.Window.Duration()),
	}, nil
}

func (eng *Engine) SetTrustScore(ctx context.Context, userID string, score float64) (*strikes.History, error) {
	op := "engine.trust"
	userID, err := checkUserID(op, userID)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return nil, moderr.Validation(op, "trust score must be a non-negative number")
	}
	hist, err := eng.History.SetTrustScore(ctx, userID, score)
	if err != nil {
		return nil, moderr.Dependency("engine.history", err)
	}
	eng.logger().Info("trust score updated", "user", userID, "trust", score)
	return hist, nil
}

// Administrative reset of a user's infractions. The engine never does this on its own.
func (eng *Engine) ClearInfractions(ctx context.Context, userID string) error {
	userID, err := checkUserID("engine.clear", userID)
	if err != nil {
		return err
	}
	if err := eng.History.ClearInfractions(ctx, userID); err != nil {
		return moderr.Dependency("engine.history", err)
	}
	eng.logger().Warn("infractions cleared", "user", userID)
	return nil
}

func (eng *Engine) RecentHistories(ctx context.Context, limit int) ([]*strikes.History, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)
	out, err := eng.History.ListRecent(ctx, limit)
	if err != nil {
		return nil, moderr.Dependency("engine.history", err)
	}
	return out, nil
}

// Stores a user's threshold override. The override is rejected if, merged with the global config, it would not
// validate.
func (eng *Engine) PutSettings(ctx context.Context, userID string, o config.Override) error {
	op := "engine.settings"
	userID, err := checkUserID(op, userID)
	if err != nil {
		return err
	}
	if eng.Settings == nil {
		return moderr.Configuration(op, "no settings store configured")
	}
	if _, err := eng.Config.WithOverride(&o); err != nil {
		return moderr.Validation(op, "invalid settings: %v", err)
	}
	if err := eng.Settings.Put(ctx, userID, o); err != nil {
		return moderr.Dependency(op, err)
	}
	return nil
}

func (eng *Engine) GetSettings(ctx context.Context, userID string) (*config.Override, error) {
	op := "engine.settings"
	userID, err := checkUserID(op, userID)
	if err != nil {
		return nil, err
	}
	if eng.Settings == nil {
		return nil, nil
	}
	o, err := eng.Settings.Get(ctx, userID)
	if err != nil {
		return nil, moderr.Dependency(op, err)
	}
	return o, nil
}

func (eng *Engine) DeleteSettings(ctx context.Context, userID string) error {
	op := "engine.settings"
	userID, err := checkUserID(op, userID)
	if err != nil {
		return err
	}
	if eng.Settings == nil {
		return nil
	}
	if err := eng.Settings.Delete(ctx, userID); err != nil {
		return moderr.Dependency(op, err)
	}
	return nil
}
