// Package seed installs demo data on an empty database so a fresh deployment
// has a browsable feed. Seeding is opt-in (SEED_DEMO) and idempotent: it only
// runs when no gatherings exist yet.
package seed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
)

// Demo inserts two recruiting demo gatherings with their host profiles and
// pre-baked credit records. A non-empty gatherings table makes it a no-op.
func Demo(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Gathering{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()

	hosts := []domain.UserProfile{
		{
			ID:          "demo-host-1",
			DisplayName: "Hotpot Han",
			Taste: domain.TasteProfile{
				SpiceLevel: 3,
				Avoid:      []string{"cilantro"},
				Diet:       []string{},
				BudgetPP:   100,
				Notes:      "fine with spicy, go easy on the numbing",
			},
		},
		{
			ID:          "demo-host-2",
			DisplayName: "Teishoku Tan",
			Taste: domain.TasteProfile{
				SpiceLevel: 0,
				Avoid:      []string{"wasabi"},
				Diet:       []string{},
				BudgetPP:   120,
				Notes:      "prefers mild food",
			},
		},
	}

	credits := []domain.CreditRecord{
		{UserID: "demo-host-1", Score: 86, RatingCount: 12, Tags: []string{"punctual", "splits the bill"}},
		{UserID: "demo-host-2", Score: 78, RatingCount: 5, Tags: []string{"easy to talk to"}},
	}

	lat1, lng1 := 39.9968, 116.4707
	lat2, lng2 := 39.995, 116.48

	createdA := now.Add(-5 * time.Minute)
	createdB := now.Add(-20 * time.Minute)

	gatherings := []domain.Gathering{
		{
			ID:           uuid.NewString(),
			CreatorID:    "demo-host-1",
			Title:        "Hotpot tonight",
			Cuisine:      "hotpot",
			StartTime:    now.Add(90 * time.Minute),
			LocationName: "Wangjing SOHO",
			Lat:          &lat1,
			Lng:          &lng1,
			MinPeople:    2,
			MaxPeople:    4,
			JoinDeadline: createdA.Add(30 * time.Minute),
			Status:       domain.StatusRecruiting,
			TasteSnapshot: hosts[0].Taste,
			Notes:        "meet at the subway exit, no small talk required",
			CreatedAt:    createdA,
			Participants: []domain.Participant{{
				ID:       uuid.NewString(),
				UserID:   "demo-host-1",
				Role:     domain.RoleCreator,
				Status:   domain.MembershipJoined,
				JoinedAt: createdA,
			}},
		},
		{
			ID:           uuid.NewString(),
			CreatorID:    "demo-host-2",
			Title:        "Japanese set lunch",
			Cuisine:      "japanese",
			StartTime:    now.Add(40 * time.Minute),
			LocationName: "Hesheng Kylin Plaza",
			Lat:          &lat2,
			Lng:          &lng2,
			MinPeople:    2,
			MaxPeople:    3,
			JoinDeadline: now.Add(10 * time.Minute),
			Status:       domain.StatusRecruiting,
			TasteSnapshot: hosts[1].Taste,
			CreatedAt:    createdB,
			Participants: []domain.Participant{{
				ID:       uuid.NewString(),
				UserID:   "demo-host-2",
				Role:     domain.RoleCreator,
				Status:   domain.MembershipJoined,
				JoinedAt: createdB,
			}},
		},
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&hosts).Error; err != nil {
			return err
		}
		if err := tx.Create(&credits).Error; err != nil {
			return err
		}
		return tx.Create(&gatherings).Error
	})
	if err != nil {
		return err
	}

	log.Info().Int("gatherings", len(gatherings)).Msg("seeded demo data")
	return nil
}
