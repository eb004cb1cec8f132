package historystore

import (
	"context"
	"errors"
	"time"

	"github.com/galaxyguard/warden/automod/strikes"

	"github.com/google/uuid"
)

var ErrEmptyUserID = errors.New("user id is required")

type HistoryStore interface {
	// Returns nil (and no error) if there is no history for the user.
	Get(ctx context.Context, userID string) (*strikes.History, error)
	// Creates an empty history, or returns the existing one.
	Create(ctx context.Context, userID string) (*strikes.History, error)
	// Atomically appends an infraction (creating the history if needed), and returns the updated history.
	AppendInfraction(ctx context.Context, userID string, inf strikes.Infraction) (*strikes.History, error)
	SetTrustScore(ctx context.Context, userID string, score float64) (*strikes.History, error)
	// Administrative reset. The engine itself never removes infractions.
	ClearInfractions(ctx context.Context, userID string) error
	// Histories with the most recent infractions, newest first.
	ListRecent(ctx context.Context, limit int) ([]*strikes.History, error)
}

// Fills in defaults for an infraction about to be stored, and keeps timestamps non-decreasing within the history.
func prepareInfraction(inf strikes.Infraction, last *time.Time, now time.Time) strikes.Infraction {
	if inf.ID == "" {
		inf.ID = uuid.NewString()
	}
	if inf.Timestamp.IsZero() {
		inf.Timestamp = now
	}
	if last != nil && inf.Timestamp.Before(*last) {
		inf.Timestamp = *last
	}
	return inf
}
