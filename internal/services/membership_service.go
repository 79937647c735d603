// Package services – MembershipService
//
// This file implements join/leave over the append-only participant log. The
// state machine per (gathering, user) pair is: not a participant → joined ⇄
// left. Joins serialize per gathering id so that two concurrent joins against
// the same gathering cannot both pass the capacity check; different
// gatherings proceed independently.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/repo"
)

// MembershipService enforces the capacity and deadline rules for joining and
// leaving gatherings.
type MembershipService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gatherings resolves status before membership checks.
	Gatherings *GatheringService

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lockFor returns the per-gathering mutex, creating it on first use. Locks
// are never evicted; the universe of gathering ids in one process stays
// small relative to the rows themselves.
func (s *MembershipService) lockFor(gatheringID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[gatheringID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[gatheringID] = l
	}
	return l
}

// Join adds userID to the gathering as of now.
//
// Rule order, per the membership state machine:
//  1. Unknown gathering → ErrGatheringNotFound.
//  2. Status is resolved as of now (this may settle the record to a
//     terminal state right here).
//  3. Resolved cancelled → ErrGatheringCancelled.
//  4. now at or past the join deadline → ErrDeadlinePassed, even when the
//     gathering confirmed at the deadline.
//  5. Already joined → idempotent success, no state change.
//  6. Joined count at max_people → ErrGatheringFull.
//  7. Otherwise a fresh "joined" log entry is appended and persisted.
//
// The whole read-modify-write holds the per-gathering lock.
func (s *MembershipService) Join(ctx context.Context, userID, gatheringID string, now time.Time) (*domain.Gathering, error) {
	l := s.lockFor(gatheringID)
	l.Lock()
	defer l.Unlock()

	g, err := s.Gatherings.Get(ctx, gatheringID, now)
	if err != nil {
		return nil, err
	}
	if g.Status == domain.StatusCancelled {
		return nil, ErrGatheringCancelled
	}
	if !now.Before(g.JoinDeadline) {
		return nil, ErrDeadlinePassed
	}
	if g.JoinedParticipant(userID) != nil {
		return g, nil
	}
	if g.JoinedCount() >= g.MaxPeople {
		return nil, ErrGatheringFull
	}

	p, err := repo.AppendParticipant(ctx, s.DB, g.ID, userID, domain.RoleMember, now)
	if err != nil {
		return nil, err
	}
	g.Participants = append(g.Participants, *p)
	return g, nil
}

// Leave marks userID's joined entry as left. Users who never joined get a
// successful no-op. Leaving never re-resolves status: a confirmed or
// cancelled gathering stays terminal no matter who walks away.
func (s *MembershipService) Leave(ctx context.Context, userID, gatheringID string, now time.Time) (*domain.Gathering, error) {
	l := s.lockFor(gatheringID)
	l.Lock()
	defer l.Unlock()

	g, err := repo.GetGathering(ctx, s.DB, gatheringID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGatheringNotFound
		}
		return nil, err
	}

	if _, err := repo.MarkParticipantLeft(ctx, s.DB, gatheringID, userID); err != nil {
		return nil, err
	}
	for i := range g.Participants {
		if g.Participants[i].UserID == userID && g.Participants[i].Status == domain.MembershipJoined {
			g.Participants[i].Status = domain.MembershipLeft
		}
	}
	return g, nil
}
