// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Gathering
// aggregate and its append-only participant log.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. In particular, status resolution and
// capacity rules live in the service layer; the repo never interprets them.
//
// Error semantics:
//   - When a gathering is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateGathering inserts a new Gathering row together with its seed creator
// participant entry, in one transaction. The caller supplies a fully built
// record except for IDs and timestamps, which are set here.
func CreateGathering(ctx context.Context, db *gorm.DB, g *domain.Gathering) (*domain.Gathering, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	for i := range g.Participants {
		if g.Participants[i].ID == "" {
			g.Participants[i].ID = uuid.NewString()
		}
		g.Participants[i].GatheringID = g.ID
	}
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

// GetGathering fetches a single gathering by ID with its full participant
// log, oldest entry first. Returns ErrNotFound if the record is missing.
func GetGathering(ctx context.Context, db *gorm.DB, id string) (*domain.Gathering, error) {
	var g domain.Gathering
	err := db.WithContext(ctx).
		Preload("Participants", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("joined_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGatherings returns every stored gathering with participants, most
// recently created first. The feed layer filters and sorts the result; the
// repo deliberately returns cancelled and past rows too, because every read
// path has to re-resolve status before deciding what to surface.
func ListGatherings(ctx context.Context, db *gorm.DB) ([]domain.Gathering, error) {
	var out []domain.Gathering
	err := db.WithContext(ctx).
		Preload("Participants", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("joined_at ASC, id ASC")
		}).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateGatheringStatus persists a resolved status for a gathering. If no
// rows are affected (gathering missing), it returns ErrNotFound.
func UpdateGatheringStatus(ctx context.Context, db *gorm.DB, id string, status domain.GatheringStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Gathering{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendParticipant appends a fresh membership log entry. Entries are never
// updated back to "joined" in place; a re-join is always a new row.
func AppendParticipant(ctx context.Context, db *gorm.DB, gatheringID, userID, role string, now time.Time) (*domain.Participant, error) {
	p := &domain.Participant{
		ID:          uuid.NewString(),
		GatheringID: gatheringID,
		UserID:      userID,
		Role:        role,
		Status:      domain.MembershipJoined,
		JoinedAt:    now.UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// MarkParticipantLeft flips the user's joined entries for a gathering to
// "left" and reports how many rows changed. Zero rows is not an error: leave
// is a no-op for users who never joined.
func MarkParticipantLeft(ctx context.Context, db *gorm.DB, gatheringID, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("gathering_id = ? AND user_id = ? AND status = ?", gatheringID, userID, domain.MembershipJoined).
		Update("status", domain.MembershipLeft)
	return res.RowsAffected, res.Error
}

// CountJoined returns the number of currently joined participants for a
// gathering. Left rows are excluded.
func CountJoined(ctx context.Context, db *gorm.DB, gatheringID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("gathering_id = ? AND status = ?", gatheringID, domain.MembershipJoined).
		Count(&n).Error
	return n, err
}
