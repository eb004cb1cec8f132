package settingsstore

import (
	"context"
	"maps"

	"github.com/galaxyguard/warden/automod/config"

	"github.com/puzpuzpuz/xsync/v4"
)

type MemSettingsStore struct {
	Data *xsync.Map[string, config.Override]
}

var _ SettingsStore = (*MemSettingsStore)(nil)

func NewMemSettingsStore() *MemSettingsStore {
	return &MemSettingsStore{
		Data: xsync.NewMap[string, config.Override](),
	}
}

func copyOverride(o config.Override) *config.Override {
	out := o
	out.Categories = maps.Clone(o.Categories)
	if o.Actions != nil {
		v := *o.Actions
		out.Actions = &v
	}
	if o.Individual != nil {
		v := *o.Individual
		out.Individual = &v
	}
	if o.Cumulative != nil {
		v := *o.Cumulative
		out.Cumulative = &v
	}
	return &out
}

func (s *MemSettingsStore) Get(ctx context.Context, userID string) (*config.Override, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	o, ok := s.Data.Load(userID)
	if !ok {
		return nil, nil
	}
	return copyOverride(o), nil
}

func (s *MemSettingsStore) Put(ctx context.Context, userID string, o config.Override) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	s.Data.Store(userID, *copyOverride(o))
	return nil
}

func (s *MemSettingsStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	s.Data.Delete(userID)
	return nil
}
