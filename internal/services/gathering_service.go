// Package services – GatheringService
//
// This file implements the gathering lifecycle: creation with the fixed
// recruitment window and creator taste snapshot, the pure status-resolution
// function, and its persisting wrapper. ResolveStatus is the only place a
// gathering transitions out of "recruiting", and every read path settles
// status against the caller's clock before surfacing a record, so stale
// "recruiting" badges never outlive their deadline.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/repo"
)

// DefaultJoinWindow is the length of the recruitment window when the service
// is not configured otherwise.
const DefaultJoinWindow = 30 * time.Minute

// resolvedTotal counts status transitions applied by ResolveAndPersist.
var resolvedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatherings_resolved_total",
		Help: "Gatherings settled out of recruiting, by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(resolvedTotal)
}

// CreateGatheringInput is the payload for creating a gathering. Lat/Lng are
// optional; everything else is required or defaulted.
type CreateGatheringInput struct {
	Title        string
	Cuisine      string
	StartTime    time.Time
	LocationName string
	Lat          *float64
	Lng          *float64
	MinPeople    int
	MaxPeople    int
	Notes        string
}

// GatheringService owns gathering records and their derived status.
type GatheringService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// JoinWindow is how long a gathering recruits after creation;
	// zero means DefaultJoinWindow.
	JoinWindow time.Duration

	// TitleLocale drives title casing for cuisine-derived default titles;
	// zero value means English.
	TitleLocale language.Tag
}

func (s *GatheringService) titleLocale() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

func (s *GatheringService) joinWindow() time.Duration {
	if s.JoinWindow <= 0 {
		return DefaultJoinWindow
	}
	return s.JoinWindow
}

// Create validates the payload, snapshots the creator's taste profile, seeds
// the creator participant entry, and persists the new gathering in
// "recruiting" state with join_deadline = now + join window.
//
// Capacity bounds are enforced here (min >= 2, max >= min) and reported as
// ErrInvalidInput; the repo below stays a lenient construction helper.
func (s *GatheringService) Create(ctx context.Context, creator *domain.UserProfile, in CreateGatheringInput, now time.Time) (*domain.Gathering, error) {
	if in.MinPeople < 2 || in.MaxPeople < in.MinPeople {
		return nil, ErrInvalidInput
	}
	if in.StartTime.IsZero() {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(in.Title)
	cuisine := strings.TrimSpace(in.Cuisine)
	if cuisine == "" {
		cuisine = "other"
	}
	if title == "" {
		if cuisine == "other" {
			title = "Dinner together"
		} else {
			titleCaser := cases.Title(s.titleLocale())
			title = titleCaser.String(cuisine) + " together"
		}
	}

	now = now.UTC()
	g := &domain.Gathering{
		CreatorID:     creator.ID,
		Title:         title,
		Cuisine:       cuisine,
		StartTime:     in.StartTime.UTC(),
		LocationName:  strings.TrimSpace(in.LocationName),
		Lat:           in.Lat,
		Lng:           in.Lng,
		MinPeople:     in.MinPeople,
		MaxPeople:     in.MaxPeople,
		JoinDeadline:  now.Add(s.joinWindow()),
		Status:        domain.StatusRecruiting,
		TasteSnapshot: creator.Taste,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     now,
		Participants: []domain.Participant{{
			UserID:   creator.ID,
			Role:     domain.RoleCreator,
			Status:   domain.MembershipJoined,
			JoinedAt: now,
		}},
	}
	return repo.CreateGathering(ctx, s.DB, g)
}

// ResolveStatus computes the status of g as of now. Pure function:
//   - terminal statuses are returned unchanged, regardless of participants;
//   - before the deadline the gathering keeps recruiting;
//   - at or after the deadline it confirms when joined count >= min_people,
//     and cancels otherwise.
func ResolveStatus(g *domain.Gathering, now time.Time) domain.GatheringStatus {
	if g.Status.Terminal() {
		return g.Status
	}
	if now.Before(g.JoinDeadline) {
		return domain.StatusRecruiting
	}
	if g.JoinedCount() < g.MinPeople {
		return domain.StatusCancelled
	}
	return domain.StatusConfirmed
}

// ResolveAndPersist applies ResolveStatus and writes the new status back when
// it changed. Every read path that surfaces a gathering must run through
// here first, so status is settled eagerly against the caller's clock.
func (s *GatheringService) ResolveAndPersist(ctx context.Context, g *domain.Gathering, now time.Time) (*domain.Gathering, error) {
	next := ResolveStatus(g, now)
	if next == g.Status {
		return g, nil
	}
	if err := repo.UpdateGatheringStatus(ctx, s.DB, g.ID, next); err != nil {
		return nil, err
	}
	g.Status = next
	resolvedTotal.WithLabelValues(string(next)).Inc()
	return g, nil
}

// Get loads a gathering by id with its status resolved as of now.
// Returns ErrGatheringNotFound for unknown ids.
func (s *GatheringService) Get(ctx context.Context, id string, now time.Time) (*domain.Gathering, error) {
	g, err := repo.GetGathering(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGatheringNotFound
		}
		return nil, err
	}
	return s.ResolveAndPersist(ctx, g, now)
}

// ResolveAll sweeps every stored gathering and settles overdue statuses.
// Used by the advisory background job; correctness never depends on it
// because reads resolve independently.
func (s *GatheringService) ResolveAll(ctx context.Context, now time.Time) (changed int, err error) {
	gs, err := repo.ListGatherings(ctx, s.DB)
	if err != nil {
		return 0, err
	}
	for i := range gs {
		before := gs[i].Status
		g, err := s.ResolveAndPersist(ctx, &gs[i], now)
		if err != nil {
			return changed, err
		}
		if g.Status != before {
			changed++
		}
	}
	return changed, nil
}
