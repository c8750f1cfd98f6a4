// Package repo – alert history repository.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound for consistency across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAlert inserts one delivered-alert row for userID. The alert ID is a
// randomly generated UUID and CreatedAt is set to UTC.
func CreateAlert(ctx context.Context, db *gorm.DB, userID int64, suggestions int, text string) (*domain.Alert, error) {
	a := &domain.Alert{
		ID:          uuid.NewString(),
		UserID:      userID,
		Suggestions: suggestions,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// ListAlerts returns the most recent alerts for userID, newest first,
// capped at limit.
func ListAlerts(ctx context.Context, db *gorm.DB, userID int64, limit int) ([]domain.Alert, error) {
	var out []domain.Alert
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListAlertsPage returns one page of the user's alerts, newest first.
func ListAlertsPage(ctx context.Context, db *gorm.DB, userID int64, offset, limit int) ([]domain.Alert, error) {
	var out []domain.Alert
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountAlerts returns the total number of alerts recorded for userID.
func CountAlerts(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// History adapts the repository functions to the watch.Recorder interface
// so the scheduler can archive alerts without depending on GORM directly.
type History struct {
	DB *gorm.DB
}

// Record implements watch.Recorder.
func (h History) Record(ctx context.Context, userID int64, suggestions int, text string) error {
	_, err := CreateAlert(ctx, h.DB, userID, suggestions, text)
	return err
}

// List returns one page of the user's alerts, newest first. Pages are
// 1-based; out-of-range pages yield an empty slice.
func (h History) List(ctx context.Context, userID int64, page, perPage int) ([]domain.Alert, error) {
	if page < 1 {
		page = 1
	}
	return ListAlertsPage(ctx, h.DB, userID, (page-1)*perPage, perPage)
}
