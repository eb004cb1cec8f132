package messagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/galaxyguard/warden/automod/action"

	"gorm.io/gorm"
)

type ChatMessage struct {
	ID          string    `gorm:"primarykey"`
	Content     string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"index:idx_chat_channel_time,priority:2"`
	UserID      string    `gorm:"index;not null"`
	Username    string
	ChannelID   string `gorm:"index:idx_chat_channel_time,priority:1;not null"`
	ChannelName string
	MessageType string
	Platform    string
	// JSON-encoded list
	Badges string

	WasModerated bool `gorm:"index"`
	// empty until evaluated
	Action   string
	Reason   string
	Severity float64
	// comma-delimited, with leading and trailing commas, so a single category can be matched with LIKE
	Categories  string
	ModeratedBy string
	ModeratedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type GormMessageStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

var _ MessageStore = (*GormMessageStore)(nil)

func NewGormMessageStore(db *gorm.DB) (*GormMessageStore, error) {
	if err := db.AutoMigrate(&ChatMessage{}); err != nil {
		return nil, fmt.Errorf("migrating chat message table: %w", err)
	}
	return &GormMessageStore{DB: db, Now: time.Now}, nil
}

func encodeCategories(cats []string) string {
	if len(cats) == 0 {
		return ""
	}
	return "," + strings.Join(cats, ",") + ","
}

func decodeCategories(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (row *ChatMessage) message() (*Message, error) {
	m := &Message{
		ID:          row.ID,
		Content:     row.Content,
		Timestamp:   row.Timestamp.UTC(),
		UserID:      row.UserID,
		Username:    row.Username,
		ChannelID:   row.ChannelID,
		ChannelName: row.ChannelName,
		MessageType: row.MessageType,
		Platform:    row.Platform,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.Badges != "" {
		if err := json.Unmarshal([]byte(row.Badges), &m.Badges); err != nil {
			return nil, fmt.Errorf("parsing message badges: %w", err)
		}
	}
	if row.Action != "" {
		act, err := action.Parse(row.Action)
		if err != nil {
			return nil, err
		}
		m.Moderation = &Moderation{
			Action:      act,
			Reason:      row.Reason,
			Severity:    row.Severity,
			Categories:  decodeCategories(row.Categories),
			ModeratedBy: row.ModeratedBy,
		}
		if row.ModeratedAt != nil {
			m.Moderation.ModeratedAt = row.ModeratedAt.UTC()
		}
	}
	return m, nil
}

func (s *GormMessageStore) Create(ctx context.Context, msg Message) (*Message, error) {
	m, err := prepareMessage(msg, clock(s.Now))
	if err != nil {
		return nil, err
	}
	row := ChatMessage{
		ID:          m.ID,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
		UserID:      m.UserID,
		Username:    m.Username,
		ChannelID:   m.ChannelID,
		ChannelName: m.ChannelName,
		MessageType: m.MessageType,
		Platform:    m.Platform,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.Badges) > 0 {
		b, err := json.Marshal(m.Badges)
		if err != nil {
			return nil, err
		}
		row.Badges = string(b)
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormMessageStore) Get(ctx context.Context, id string) (*Message, error) {
	var row ChatMessage
	err := s.DB.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return row.message()
}

func (s *GormMessageStore) SetModeration(ctx context.Context, id string, mod Moderation) (*Message, error) {
	if mod.ModeratedAt.IsZero() {
		mod.ModeratedAt = clock(s.Now)
	}
	at := mod.ModeratedAt.UTC()
	res := s.DB.WithContext(ctx).Model(&ChatMessage{}).Where("id = ?", id).Updates(map[string]any{
		"was_moderated": mod.Action != action.Allow,
		"action":        mod.Action.String(),
		"reason":        mod.Reason,
		"severity":      mod.Severity,
		"categories":    encodeCategories(mod.Categories),
		"moderated_by":  mod.ModeratedBy,
		"moderated_at":  &at,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

func (s *GormMessageStore) List(ctx context.Context, q Query) ([]*Message, error) {
	db := s.DB.WithContext(ctx).Model(&ChatMessage{})
	if q.ChannelID != "" {
		db = db.Where("channel_id = ?", q.ChannelID)
	}
	if !q.Since.IsZero() {
		db = db.Where("timestamp >= ?", q.Since.UTC())
	}
	if !q.Until.IsZero() {
		db = db.Where("timestamp <= ?", q.Until.UTC())
	}
	if q.ModeratedOnly {
		db = db.Where("was_moderated = ?", true)
	}
	if len(q.Categories) > 0 {
		cond := s.DB.Where("categories LIKE ?", "%,"+q.Categories[0]+",%")
		for _, c := range q.Categories[1:] {
			cond = cond.Or("categories LIKE ?", "%,"+c+",%")
		}
		db = db.Where(cond)
	}
	db = db.Order("timestamp DESC, created_at DESC")
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []ChatMessage
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Message, 0, len(rows))
	for i := range rows {
		m, err := rows[i].message()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
