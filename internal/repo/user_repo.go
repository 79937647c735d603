// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for user profiles.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tablemate/go-gather-backend/internal/domain"
)

// GetProfile fetches a user profile, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error) {
	var u domain.UserProfile
	if err := db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureProfile creates a profile with the given defaults if absent and
// returns the stored row either way.
func EnsureProfile(ctx context.Context, db *gorm.DB, userID string, defaults domain.UserProfile) (*domain.UserProfile, error) {
	u := defaults
	u.ID = userID
	u.CreatedAt = time.Now().UTC()
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&u).Error
	if err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, userID)
}

// SaveProfile persists profile edits (display name and taste profile).
func SaveProfile(ctx context.Context, db *gorm.DB, u *domain.UserProfile) error {
	return db.WithContext(ctx).Save(u).Error
}
