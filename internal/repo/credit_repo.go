// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for per-user
// credit records.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tablemate/go-gather-backend/internal/domain"
)

// EnsureCredit idempotently creates a credit record for userID, seeded from
// seed. If a row already exists it is returned untouched; the seed is only
// consulted on first creation.
func EnsureCredit(ctx context.Context, db *gorm.DB, userID string, seed domain.CreditRecord) (*domain.CreditRecord, error) {
	rec := domain.CreditRecord{
		UserID:      userID,
		Score:       seed.Score,
		RatingCount: seed.RatingCount,
		Tags:        seed.Tags,
		CreatedAt:   time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return nil, err
	}
	// Re-read so concurrent first writers all observe the winning row.
	return GetCredit(ctx, db, userID)
}

// GetCredit fetches the credit record for userID, or ErrNotFound. It never
// creates anything; lazy creation is the service layer's call.
func GetCredit(ctx context.Context, db *gorm.DB, userID string) (*domain.CreditRecord, error) {
	var rec domain.CreditRecord
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveCredit persists an updated credit record (score, count, tags). Save by
// primary key so the JSON serializer on Tags is applied.
func SaveCredit(ctx context.Context, db *gorm.DB, rec *domain.CreditRecord) error {
	return db.WithContext(ctx).Save(rec).Error
}
