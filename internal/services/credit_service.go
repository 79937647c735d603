// Package services – CreditService
//
// This file implements the Credit Ledger: a per-user reputation score derived
// from a running weighted average of peer ratings. Each rating is expressed
// on a 100-point scale (stars * 20) and contributes weight 1, so replaying
// the same set of ratings in any order yields the same final score.
package services

import (
	"context"
	"errors"
	"math"
	"sync"

	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/repo"
)

// DefaultCreditScore is the seed score for users who have never been rated.
const DefaultCreditScore = 80

// CreditService manages lazily created credit records and rating accrual.
type CreditService struct {
	// DB is the database handle used for all credit operations.
	DB *gorm.DB

	// DefaultScore seeds new records; zero means DefaultCreditScore.
	DefaultScore int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lockFor returns the per-user mutex guarding the read-modify-write in
// ApplyRating, creating it on first use. Locks are never evicted; the
// universe of rated user ids in one process stays small.
func (s *CreditService) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// defaultRecord builds the never-persisted fallback returned for unknown users.
func (s *CreditService) defaultRecord(userID string) *domain.CreditRecord {
	score := s.DefaultScore
	if score == 0 {
		score = DefaultCreditScore
	}
	return &domain.CreditRecord{UserID: userID, Score: score, RatingCount: 0, Tags: []string{}}
}

// Ensure idempotently creates a credit record for userID, seeding from seed
// when non-nil or from the system default otherwise. Existing records are
// returned untouched.
func (s *CreditService) Ensure(ctx context.Context, userID string, seed *domain.CreditRecord) (*domain.CreditRecord, error) {
	base := s.defaultRecord(userID)
	if seed != nil {
		if seed.Score != 0 {
			base.Score = seed.Score
		}
		base.RatingCount = seed.RatingCount
		if seed.Tags != nil {
			base.Tags = seed.Tags
		}
	}
	return repo.EnsureCredit(ctx, s.DB, userID, *base)
}

// Get returns the stored record for userID, or the system default record
// when none exists. The default is never persisted; Get is read-only.
func (s *CreditService) Get(ctx context.Context, userID string) (*domain.CreditRecord, error) {
	rec, err := repo.GetCredit(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaultRecord(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ApplyRating folds one 1-5 star rating into toUserID's score and persists
// the result. Scores outside [1,5] are clamped, never rejected.
//
// The update is the running weighted mean
//
//	newScore = round((oldScore*oldCount + stars*20) / (oldCount + 1))
//
// which is order-independent over any set of ratings. The record is created
// from the system default first if the user has never been rated.
//
// The get-compute-save sequence holds a per-user lock so concurrent ratings
// for one user serialize; ratings for different users stay independent.
func (s *CreditService) ApplyRating(ctx context.Context, toUserID string, stars int) (*domain.CreditRecord, error) {
	if stars < 1 {
		stars = 1
	}
	if stars > 5 {
		stars = 5
	}

	lock := s.lockFor(toUserID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := repo.EnsureCredit(ctx, s.DB, toUserID, *s.defaultRecord(toUserID))
	if err != nil {
		return nil, err
	}

	sum := float64(rec.Score)*float64(rec.RatingCount) + float64(stars*20)
	rec.Score = int(math.Round(sum / float64(rec.RatingCount+1)))
	rec.RatingCount++

	if err := repo.SaveCredit(ctx, s.DB, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
