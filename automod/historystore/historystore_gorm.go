package historystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/automod/strikes"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserHistory struct {
	ID               uint   `gorm:"primarykey"`
	UserID           string `gorm:"uniqueIndex;not null"`
	TrustScore       float64
	TotalInfractions int
	LastInfractionAt *time.Time `gorm:"index"`
	CreatedAt        time.Time
}

type InfractionRecord struct {
	ID           uint   `gorm:"primarykey"`
	InfractionID string `gorm:"uniqueIndex"`
	UserID       string `gorm:"index:idx_infraction_user_time,priority:1"`
	Action       string
	Category     string
	Severity     float64
	Timestamp    time.Time `gorm:"index:idx_infraction_user_time,priority:2"`
	Content      string
	// JSON-encoded scoring.Context
	Context string
	DecayAt time.Time
}

func (InfractionRecord) TableName() string {
	return "infractions"
}

// SQL-backed store. Appends run in a transaction which bumps the counter row before inserting, so the row lock
// serializes concurrent appends for the same user.
type GormHistoryStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

var _ HistoryStore = (*GormHistoryStore)(nil)

func NewGormHistoryStore(db *gorm.DB) (*GormHistoryStore, error) {
	if err := db.AutoMigrate(&UserHistory{}, &InfractionRecord{}); err != nil {
		return nil, fmt.Errorf("migrating history tables: %w", err)
	}
	return &GormHistoryStore{DB: db, Now: time.Now}, nil
}

func (s *GormHistoryStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (r *InfractionRecord) infraction() (strikes.Infraction, error) {
	act, err := action.Parse(r.Action)
	if err != nil {
		return strikes.Infraction{}, err
	}
	var sctx scoring.Context
	if r.Context != "" {
		if err := json.Unmarshal([]byte(r.Context), &sctx); err != nil {
			return strikes.Infraction{}, fmt.Errorf("parsing infraction context: %w", err)
		}
	}
	return strikes.Infraction{
		ID:        r.InfractionID,
		Type:      act,
		Category:  r.Category,
		Severity:  r.Severity,
		Timestamp: r.Timestamp.UTC(),
		Content:   r.Content,
		Context:   sctx,
		DecayAt:   r.DecayAt.UTC(),
	}, nil
}

func (s *GormHistoryStore) load(db *gorm.DB, userID string) (*strikes.History, error) {
	var row UserHistory
	err := db.Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var records []InfractionRecord
	if err := db.Where("user_id = ?", userID).Order("timestamp ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	h := strikes.History{
		UserID:           row.UserID,
		TrustScore:       row.TrustScore,
		TotalInfractions: row.TotalInfractions,
		CreatedAt:        row.CreatedAt.UTC(),
	}
	if row.LastInfractionAt != nil {
		last := row.LastInfractionAt.UTC()
		h.LastInfractionAt = &last
	}
	for i := range records {
		inf, err := records[i].infraction()
		if err != nil {
			return nil, err
		}
		h.Infractions = append(h.Infractions, inf)
	}
	return &h, nil
}

func (s *GormHistoryStore) ensure(db *gorm.DB, userID string) error {
	row := UserHistory{UserID: userID, CreatedAt: s.now()}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *GormHistoryStore) Get(ctx context.Context, userID string) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	// the history row and the infraction rows are read from one snapshot
	var out *strikes.History
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h, err := s.load(tx, userID)
		out = h
		return err
	}, s.snapshotOptions())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// postgres defaults to READ COMMITTED, where each statement sees its own snapshot
func (s *GormHistoryStore) snapshotOptions() *sql.TxOptions {
	if s.DB.Dialector.Name() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

func (s *GormHistoryStore) Create(ctx context.Context, userID string) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	db := s.DB.WithContext(ctx)
	if err := s.ensure(db, userID); err != nil {
		return nil, err
	}
	return s.load(db, userID)
}

func (s *GormHistoryStore) AppendInfraction(ctx context.Context, userID string, inf strikes.Infraction) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	var out *strikes.History
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensure(tx, userID); err != nil {
			return err
		}
		// the counter update comes first so it takes the row lock before anything is read
		err := tx.Model(&UserHistory{}).Where("user_id = ?", userID).
			Update("total_infractions", gorm.Expr("total_infractions + 1")).Error
		if err != nil {
			return err
		}
		var row UserHistory
		if err := tx.Where("user_id = ?", userID).Take(&row).Error; err != nil {
			return err
		}

		inf = prepareInfraction(inf, row.LastInfractionAt, s.now())
		sctx, err := json.Marshal(inf.Context)
		if err != nil {
			return err
		}
		rec := InfractionRecord{
			InfractionID: inf.ID,
			UserID:       userID,
			Action:       inf.Type.String(),
			Category:     inf.Category,
			Severity:     inf.Severity,
			Timestamp:    inf.Timestamp,
			Content:      inf.Content,
			Context:      string(sctx),
			DecayAt:      inf.DecayAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		err = tx.Model(&UserHistory{}).Where("user_id = ?", userID).Update("last_infraction_at", inf.Timestamp).Error
		if err != nil {
			return err
		}
		out, err = s.load(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormHistoryStore) SetTrustScore(ctx context.Context, userID string, score float64) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	db := s.DB.WithContext(ctx)
	if err := s.ensure(db, userID); err != nil {
		return nil, err
	}
	if err := db.Model(&UserHistory{}).Where("user_id = ?", userID).Update("trust_score", score).Error; err != nil {
		return nil, err
	}
	return s.load(db, userID)
}

func (s *GormHistoryStore) ClearInfractions(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&InfractionRecord{}).Error; err != nil {
			return err
		}
		return tx.Model(&UserHistory{}).Where("user_id = ?", userID).Updates(map[string]any{
			"total_infractions":  0,
			"last_infraction_at": nil,
		}).Error
	})
}

func (s *GormHistoryStore) ListRecent(ctx context.Context, limit int) ([]*strikes.History, error) {
	db := s.DB.WithContext(ctx)
	q := db.Model(&UserHistory{}).Where("last_infraction_at IS NOT NULL").Order("last_infraction_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []string
	if err := q.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make([]*strikes.History, 0, len(ids))
	for _, id := range ids {
		h, err := s.load(db, id)
		if err != nil {
			return nil, err
		}
		if h != nil {
			out = append(out, h)
		}
	}
	return out, nil
}
