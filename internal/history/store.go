package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lmslight/lms-core/internal/models"

	"gorm.io/gorm"
)

// Filter selects history rows. Empty fields are ignored.
type Filter struct {
	Table    string
	RecordID string
	ClassID  string
}

// Store persists and queries history rows.
type Store interface {
	Insert(ctx context.Context, row *models.History) error
	// FindMany returns matching rows newest first; limit <= 0 means unbounded.
	FindMany(ctx context.Context, filter Filter, limit int) ([]models.History, error)
	LookupActors(ctx context.Context, userIDs []string) (map[string]models.Actor, error)
}

// GormStore implements Store on a GORM connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Insert appends one row.
func (s *GormStore) Insert(ctx context.Context, row *models.History) error {
	if s == nil || s.db == nil {
		return errors.New("history: nil store")
	}
	if row == nil {
		return errors.New("history: nil row")
	}
	if errCreate := s.db.WithContext(ctx).Create(row).Error; errCreate != nil {
		return fmt.Errorf("history: insert: %w", errCreate)
	}
	return nil
}

// FindMany returns rows matching filter ordered by created_at and id, newest first.
func (s *GormStore) FindMany(ctx context.Context, filter Filter, limit int) ([]models.History, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history: nil store")
	}
	q := s.db.WithContext(ctx).Model(&models.History{})
	if table := strings.TrimSpace(filter.Table); table != "" {
		q = q.Where("table_name = ?", table)
	}
	if recordID := strings.TrimSpace(filter.RecordID); recordID != "" {
		q = q.Where("record_id = ?", recordID)
	}
	if classID := strings.TrimSpace(filter.ClassID); classID != "" {
		q = q.Where("class_id = ?", classID)
	}
	q = q.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.History
	if errFind := q.Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("history: query: %w", errFind)
	}
	return rows, nil
}

// LookupActors loads display fields for the given user ids. Unknown ids are absent from the result.
func (s *GormStore) LookupActors(ctx context.Context, userIDs []string) (map[string]models.Actor, error) {
	out := make(map[string]models.Actor, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	if s == nil || s.db == nil {
		return nil, errors.New("history: nil store")
	}
	var actors []models.Actor
	if errFind := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "username", "first_name", "last_name").
		Where("id IN ?", userIDs).
		Find(&actors).Error; errFind != nil {
		return nil, fmt.Errorf("history: lookup actors: %w", errFind)
	}
	for _, actor := range actors {
		out[actor.ID] = actor
	}
	return out, nil
}
