// Package services – FeedService
//
// This file implements the discovery feed: it settles the status of every
// stored gathering against the caller's clock, then hands the survivors to
// the pure feed pipeline for filtering, annotation, and nearest-first
// ordering. Distance and credit annotations are computed fresh per query and
// never persisted.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/feed"
	"github.com/tablemate/go-gather-backend/internal/geo"
	"github.com/tablemate/go-gather-backend/internal/repo"
)

// FeedService assembles the active-gatherings feed.
type FeedService struct {
	// DB is the GORM handle used to enumerate gatherings.
	DB *gorm.DB
	// Gatherings settles statuses before filtering.
	Gatherings *GatheringService
	// Credit supplies creator score annotations.
	Credit *CreditService
	// DefaultLookahead bounds the feed horizon when the query carries no
	// explicit window; zero falls through to the feed package default.
	DefaultLookahead time.Duration
}

// ListActive returns feed entries for every gathering that is still worth
// showing as of now: status resolved (and persisted when it changed), then
// filtered and sorted by the feed pipeline. The viewer location is optional;
// without it, entries order by start time alone.
func (s *FeedService) ListActive(ctx context.Context, now time.Time, f feed.Filters, viewer *geo.Coordinate) ([]feed.Entry, error) {
	if f.Lookahead <= 0 {
		f.Lookahead = s.DefaultLookahead
	}

	gs, err := repo.ListGatherings(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	for i := range gs {
		if _, err := s.Gatherings.ResolveAndPersist(ctx, &gs[i], now); err != nil {
			return nil, err
		}
	}

	// Look up each distinct creator once per query.
	scores := make(map[string]int, len(gs))
	lookup := func(userID string) int {
		if score, ok := scores[userID]; ok {
			return score
		}
		score := s.Credit.DefaultScore
		if score == 0 {
			score = DefaultCreditScore
		}
		if rec, err := s.Credit.Get(ctx, userID); err == nil {
			score = rec.Score
		}
		scores[userID] = score
		return score
	}

	return feed.Build(gs, now, f, viewer, lookup), nil
}
