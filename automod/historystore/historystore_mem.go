package historystore

import (
	"context"
	"sort"
	"time"

	"github.com/galaxyguard/warden/automod/strikes"

	"github.com/puzpuzpuz/xsync/v4"
)

// In-process store. Every mutation goes through a per-key atomic compute, which replaces the stored *History with a
// modified copy, so readers never see a partially updated history.
type MemHistoryStore struct {
	Data *xsync.Map[string, *strikes.History]
	// clock for CreatedAt and default infraction timestamps
	Now func() time.Time
}

var _ HistoryStore = (*MemHistoryStore)(nil)

func NewMemHistoryStore() *MemHistoryStore {
	return &MemHistoryStore{
		Data: xsync.NewMap[string, *strikes.History](),
		Now:  time.Now,
	}
}

func (s *MemHistoryStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *MemHistoryStore) Get(ctx context.Context, userID string) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	h, ok := s.Data.Load(userID)
	if !ok {
		return nil, nil
	}
	return h.Clone(), nil
}

func (s *MemHistoryStore) Create(ctx context.Context, userID string) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	h, _ := s.Data.LoadOrCompute(userID, func() (*strikes.History, bool) {
		return &strikes.History{UserID: userID, CreatedAt: s.now()}, false
	})
	return h.Clone(), nil
}

// applies fn to a copy of the user's history (created if missing) and stores the result atomically
func (s *MemHistoryStore) update(userID string, fn func(h *strikes.History)) *strikes.History {
	h, _ := s.Data.Compute(userID, func(old *strikes.History, loaded bool) (*strikes.History, xsync.ComputeOp) {
		var h *strikes.History
		if loaded {
			h = old.Clone()
		} else {
			h = &strikes.History{UserID: userID, CreatedAt: s.now()}
		}
		fn(h)
		return h, xsync.UpdateOp
	})
	return h.Clone()
}

func (s *MemHistoryStore) AppendInfraction(ctx context.Context, userID string, inf strikes.Infraction) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return s.update(userID, func(h *strikes.History) {
		inf = prepareInfraction(inf, h.LastInfractionAt, s.now())
		h.Infractions = append(h.Infractions, inf)
		h.TotalInfractions = len(h.Infractions)
		ts := inf.Timestamp
		h.LastInfractionAt = &ts
	}), nil
}

func (s *MemHistoryStore) SetTrustScore(ctx context.Context, userID string, score float64) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return s.update(userID, func(h *strikes.History) {
		h.TrustScore = score
	}), nil
}

func (s *MemHistoryStore) ClearInfractions(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if _, ok := s.Data.Load(userID); !ok {
		return nil
	}
	s.update(userID, func(h *strikes.History) {
		h.Infractions = nil
		h.TotalInfractions = 0
		h.LastInfractionAt = nil
	})
	return nil
}

func (s *MemHistoryStore) ListRecent(ctx context.Context, limit int) ([]*strikes.History, error) {
	var out []*strikes.History
	s.Data.Range(func(_ string, h *strikes.History) bool {
		if h.LastInfractionAt != nil {
			out = append(out, h.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastInfractionAt.After(*out[j].LastInfractionAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
