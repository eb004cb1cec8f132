package messagestore

import (
	"context"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// In-process store. Intended for development and tests: nothing is ever evicted.
type MemMessageStore struct {
	Data *xsync.Map[string, *Message]
	Now  func() time.Time
}

var _ MessageStore = (*MemMessageStore)(nil)

func NewMemMessageStore() *MemMessageStore {
	return &MemMessageStore{
		Data: xsync.NewMap[string, *Message](),
		Now:  time.Now,
	}
}

func copyMessage(m *Message) *Message {
	out := *m
	out.Badges = slices.Clone(m.Badges)
	if m.Moderation != nil {
		mod := *m.Moderation
		mod.Categories = slices.Clone(m.Moderation.Categories)
		out.Moderation = &mod
	}
	return &out
}

func (s *MemMessageStore) Create(ctx context.Context, msg Message) (*Message, error) {
	m, err := prepareMessage(msg, clock(s.Now))
	if err != nil {
		return nil, err
	}
	s.Data.Store(m.ID, &m)
	return copyMessage(&m), nil
}

func (s *MemMessageStore) Get(ctx context.Context, id string) (*Message, error) {
	m, ok := s.Data.Load(id)
	if !ok {
		return nil, nil
	}
	return copyMessage(m), nil
}

func (s *MemMessageStore) SetModeration(ctx context.Context, id string, mod Moderation) (*Message, error) {
	if mod.ModeratedAt.IsZero() {
		mod.ModeratedAt = clock(s.Now)
	}
	mod.Categories = slices.Clone(mod.Categories)
	m, ok := s.Data.Compute(id, func(old *Message, loaded bool) (*Message, xsync.ComputeOp) {
		if !loaded {
			return nil, xsync.CancelOp
		}
		updated := copyMessage(old)
		updated.Moderation = &mod
		return updated, xsync.UpdateOp
	})
	if !ok {
		return nil, nil
	}
	return copyMessage(m), nil
}

func (s *MemMessageStore) List(ctx context.Context, q Query) ([]*Message, error) {
	var out []*Message
	s.Data.Range(func(_ string, m *Message) bool {
		if q.matches(m) {
			out = append(out, copyMessage(m))
		}
		return true
	})
	slices.SortFunc(out, func(a, b *Message) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
