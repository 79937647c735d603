// Package services – ProfileService
//
// This file implements the session user's taste profile: created on first
// use with sensible defaults, edited via Update, never deleted. Ensuring a
// profile also lazily seeds the user's credit record so the two stay in step.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/repo"
)

// ProfileService manages user taste profiles.
type ProfileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Credit seeds a credit record alongside first-time profiles.
	Credit *CreditService
}

// defaultProfile mirrors the first-run profile of the prototype client.
func defaultProfile() domain.UserProfile {
	return domain.UserProfile{
		DisplayName: "Me",
		Taste: domain.TasteProfile{
			SpiceLevel: 2,
			Avoid:      []string{},
			Diet:       []string{},
			BudgetPP:   80,
		},
	}
}

// Ensure returns the stored profile for userID, creating it with defaults on
// first use and seeding the user's credit record.
func (s *ProfileService) Ensure(ctx context.Context, userID string) (*domain.UserProfile, error) {
	u, err := repo.EnsureProfile(ctx, s.DB, userID, defaultProfile())
	if err != nil {
		return nil, err
	}
	if s.Credit != nil {
		if _, err := s.Credit.Ensure(ctx, userID, nil); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Update persists taste profile edits. The spice level is clamped to the
// 0-5 scale and list entries are trimmed; empty entries are dropped.
func (s *ProfileService) Update(ctx context.Context, userID string, displayName string, taste domain.TasteProfile) (*domain.UserProfile, error) {
	u, err := s.Ensure(ctx, userID)
	if err != nil {
		return nil, err
	}

	if taste.SpiceLevel < 0 {
		taste.SpiceLevel = 0
	}
	if taste.SpiceLevel > 5 {
		taste.SpiceLevel = 5
	}
	taste.Avoid = cleanList(taste.Avoid)
	taste.Diet = cleanList(taste.Diet)
	taste.Notes = strings.TrimSpace(taste.Notes)

	if name := strings.TrimSpace(displayName); name != "" {
		u.DisplayName = name
	}
	u.Taste = taste
	if err := repo.SaveProfile(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return u, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
