// Package services – RatingService
//
// This file implements the post-gathering peer rating flow. A rater submits
// a batch of star scores for fellow participants; each target's credit
// update and audit-log append is an independent single-record write, so a
// failure on one target never blocks the others. There is deliberately no
// idempotency key across batches: a user may rate the same gathering more
// than once.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/repo"
)

// DefaultRatingLogCap bounds the persisted rating audit log when the service
// is not configured otherwise.
const DefaultRatingLogCap = 200

// RatingOutcome reports the per-target result of one batch entry.
type RatingOutcome struct {
	RateeID string `json:"ratee_id"`
	// Applied is false when the target was skipped (rater themselves, or
	// never a participant) or the write failed.
	Applied bool   `json:"applied"`
	Score   int    `json:"score,omitempty"`
	Credit  int    `json:"credit,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// RatingService writes peer ratings into the credit ledger and the bounded
// audit log.
type RatingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gatherings enumerates participants (and resolves status on read).
	Gatherings *GatheringService
	// Credit applies the weighted-mean update per target.
	Credit *CreditService

	// LogCap bounds the rating audit log; zero means DefaultRatingLogCap.
	LogCap int
}

func (s *RatingService) logCap() int {
	if s.LogCap <= 0 {
		return DefaultRatingLogCap
	}
	return s.LogCap
}

// SubmitRatings applies a batch of ratings from raterID for gatheringID.
//
// Eligible targets are participants of the gathering other than the rater,
// whether currently joined or since left (leaving does not erase the shared
// meal). Ineligible entries are skipped, not failed: the returned outcomes
// say per target what happened. ErrGatheringNotFound propagates; an empty
// eligible set yields ErrInvalidRating.
func (s *RatingService) SubmitRatings(ctx context.Context, gatheringID, raterID string, ratings map[string]int, now time.Time) ([]RatingOutcome, error) {
	g, err := s.Gatherings.Get(ctx, gatheringID, now)
	if err != nil {
		return nil, err
	}

	// Anyone who ever appears in the participant log is ratable.
	participated := make(map[string]bool, len(g.Participants))
	for _, p := range g.Participants {
		participated[p.UserID] = true
	}

	outcomes := make([]RatingOutcome, 0, len(ratings))
	applied := 0
	for rateeID, stars := range ratings {
		out := RatingOutcome{RateeID: rateeID, Score: stars}
		switch {
		case rateeID == raterID:
			out.Reason = "cannot rate yourself"
		case !participated[rateeID]:
			out.Reason = "not a participant"
		default:
			rec, err := s.Credit.ApplyRating(ctx, rateeID, stars)
			if err != nil {
				out.Reason = err.Error()
				break
			}
			// The audit append is best-effort relative to the credit write;
			// a lost log row is acceptable, a lost credit update is not.
			if _, err := repo.AppendRating(ctx, s.DB, g.ID, raterID, rateeID, clampStars(stars), now, s.logCap()); err != nil {
				out.Reason = err.Error()
				break
			}
			out.Applied = true
			out.Credit = rec.Score
			applied++
		}
		outcomes = append(outcomes, out)
	}

	if len(outcomes) == 0 {
		return nil, ErrInvalidRating
	}
	return outcomes, nil
}

// RecentRatings returns a page of the bounded audit log, newest first, with
// the total retained count.
func (s *RatingService) RecentRatings(ctx context.Context, page, pageSize int) ([]domain.RatingRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountRatings(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.RatingRecord{}, 0, nil
	}
	items, err := repo.ListRatingsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

func clampStars(stars int) int {
	if stars < 1 {
		return 1
	}
	if stars > 5 {
		return 5
	}
	return stars
}
