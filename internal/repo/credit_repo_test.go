package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tablemate/go-gather-backend/internal/domain"
)

func TestEnsureCredit_CreatesOnceAndKeepsExisting(t *testing.T) {
	db := newRepoDB(t, &domain.CreditRecord{})
	ctx := context.Background()

	seed := domain.CreditRecord{Score: 80, RatingCount: 0, Tags: []string{"punctual"}}
	rec, err := EnsureCredit(ctx, db, "u1", seed)
	if err != nil {
		t.Fatalf("EnsureCredit: %v", err)
	}
	if rec.Score != 80 || rec.RatingCount != 0 || len(rec.Tags) != 1 {
		t.Fatalf("unexpected seeded record: %+v", rec)
	}

	// Second ensure with a different seed must not overwrite.
	rec2, err := EnsureCredit(ctx, db, "u1", domain.CreditRecord{Score: 10})
	if err != nil {
		t.Fatalf("EnsureCredit (second): %v", err)
	}
	if rec2.Score != 80 {
		t.Fatalf("existing record overwritten: %+v", rec2)
	}
}

func TestGetCredit_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.CreditRecord{})
	_, err := GetCredit(context.Background(), db, "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveCredit_RoundTripsTags(t *testing.T) {
	db := newRepoDB(t, &domain.CreditRecord{})
	ctx := context.Background()

	rec, err := EnsureCredit(ctx, db, "u1", domain.CreditRecord{Score: 80})
	if err != nil {
		t.Fatalf("EnsureCredit: %v", err)
	}
	rec.Score = 92
	rec.RatingCount = 3
	rec.Tags = []string{"punctual", "easy to talk to"}
	if err := SaveCredit(ctx, db, rec); err != nil {
		t.Fatalf("SaveCredit: %v", err)
	}

	got, err := GetCredit(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetCredit: %v", err)
	}
	if got.Score != 92 || got.RatingCount != 3 || len(got.Tags) != 2 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}
