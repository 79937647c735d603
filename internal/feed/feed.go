// Package feed provides the pure, deterministic query pipeline behind the
// discovery feed: filter active gatherings, enrich them with presentation
// annotations, and order them nearest-first. It is intentionally small and
// dependency-light:
//
//   - No persistence or logging here (the service layer owns both)
//   - Inputs are already status-resolved gatherings; this package never
//     re-derives status
//   - Deterministic ordering (stable tie-breaks), safe for concurrent use
//
// Annotations (distance, creator credit, seconds left on the join window)
// are computed fresh on every query and never persisted.
package feed

import (
	"sort"
	"time"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/geo"
)

// DefaultLookahead bounds how far into the future the feed looks when the
// caller does not say.
const DefaultLookahead = 6 * time.Hour

// Filters narrows the feed. Zero values mean "no constraint" (Lookahead
// falls back to DefaultLookahead).
type Filters struct {
	// Cuisine keeps only gatherings with this cuisine tag when non-empty.
	Cuisine string
	// Lookahead drops gatherings starting later than now + Lookahead.
	Lookahead time.Duration
}

// Entry is one feed row: a resolved gathering plus query-time annotations.
type Entry struct {
	domain.Gathering

	// JoinedCount is the current number of joined participants.
	JoinedCount int `json:"joined_count"`
	// CreatorCreditScore is the creator's credit score at query time.
	CreatorCreditScore int `json:"creator_credit_score"`
	// DistanceKm is the viewer-to-venue distance; nil when either side has
	// no coordinates. Entries without a distance sort last.
	DistanceKm *float64 `json:"distance_km,omitempty"`
	// SecondsLeft is the remaining join-window time, floored at zero. Feeds
	// a countdown in the presentation layer.
	SecondsLeft int64 `json:"seconds_left"`
}

// CreditLookup resolves a user id to a credit score.
type CreditLookup func(userID string) int

// Build filters, annotates, and sorts resolved gatherings into feed order.
//
// A gathering survives when its resolved status is not cancelled, it has not
// started yet, and it starts within the look-ahead window; a cuisine filter
// applies when set. Surviving entries are sorted by ascending distance
// (unknown distances last), ties broken by ascending start time.
func Build(gs []domain.Gathering, now time.Time, f Filters, viewer *geo.Coordinate, credit CreditLookup) []Entry {
	lookahead := f.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	horizon := now.Add(lookahead)

	out := make([]Entry, 0, len(gs))
	for i := range gs {
		g := gs[i]
		if g.Status == domain.StatusCancelled {
			continue
		}
		if g.StartTime.Before(now) || g.StartTime.After(horizon) {
			continue
		}
		if f.Cuisine != "" && g.Cuisine != f.Cuisine {
			continue
		}

		e := Entry{
			Gathering:   g,
			JoinedCount: g.JoinedCount(),
		}
		if credit != nil {
			e.CreatorCreditScore = credit(g.CreatorID)
		}
		if viewer != nil && g.Lat != nil && g.Lng != nil {
			d := geo.DistanceKm(*viewer, geo.Coordinate{Lat: *g.Lat, Lng: *g.Lng})
			e.DistanceKm = &d
		}
		if left := g.JoinDeadline.Sub(now); left > 0 {
			e.SecondsLeft = int64(left / time.Second)
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DistanceKm, out[j].DistanceKm
		switch {
		case di == nil && dj == nil:
			return out[i].StartTime.Before(out[j].StartTime)
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		default:
			return out[i].StartTime.Before(out[j].StartTime)
		}
	})
	return out
}
