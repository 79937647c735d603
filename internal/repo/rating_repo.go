// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the bounded
// rating audit log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
)

// AppendRating inserts one rating record and trims the log down to cap rows,
// evicting the oldest entries first. A cap <= 0 disables trimming. The cap is
// a retention policy on the audit log, not a business rule, so the trim is
// best-effort: a failed trim does not undo the insert.
func AppendRating(ctx context.Context, db *gorm.DB, gatheringID, raterID, rateeID string, score int, now time.Time, cap int) (*domain.RatingRecord, error) {
	rec := &domain.RatingRecord{
		ID:          uuid.NewString(),
		GatheringID: gatheringID,
		RaterID:     raterID,
		RateeID:     rateeID,
		Score:       score,
		CreatedAt:   now.UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	if cap > 0 {
		_ = db.WithContext(ctx).Exec(`
			DELETE FROM rating_records WHERE id NOT IN (
				SELECT id FROM rating_records ORDER BY created_at DESC, id DESC LIMIT ?
			)`, cap).Error
	}
	return rec, nil
}

// ListRatingsPage returns a page of rating records, most recent first.
func ListRatingsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.RatingRecord, error) {
	var out []domain.RatingRecord
	err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountRatings returns the total number of retained rating records.
func CountRatings(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.RatingRecord{}).Count(&n).Error
	return n, err
}
