package settingsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/galaxyguard/warden/automod/config"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserSettings struct {
	ID     uint   `gorm:"primarykey"`
	UserID string `gorm:"uniqueIndex;not null"`
	// JSON-encoded config.Override
	Overrides string
	UpdatedAt time.Time
}

type GormSettingsStore struct {
	DB *gorm.DB
}

var _ SettingsStore = (*GormSettingsStore)(nil)

func NewGormSettingsStore(db *gorm.DB) (*GormSettingsStore, error) {
	if err := db.AutoMigrate(&UserSettings{}); err != nil {
		return nil, fmt.Errorf("migrating settings table: %w", err)
	}
	return &GormSettingsStore{DB: db}, nil
}

func (s *GormSettingsStore) Get(ctx context.Context, userID string) (*config.Override, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	var row UserSettings
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var o config.Override
	if err := json.Unmarshal([]byte(row.Overrides), &o); err != nil {
		return nil, fmt.Errorf("parsing settings for %s: %w", userID, err)
	}
	return &o, nil
}

func (s *GormSettingsStore) Put(ctx context.Context, userID string, o config.Override) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	row := UserSettings{
		UserID:    userID,
		Overrides: string(raw),
		UpdatedAt: time.Now().UTC(),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"overrides", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormSettingsStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserSettings{}).Error
}
