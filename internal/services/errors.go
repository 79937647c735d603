// Package services defines the business logic for gatherings, membership,
// credit, and ratings. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer. Every operation fails only with values from this
// set (plus raw DB errors); no operation signals an error it does not declare.
package services

import "errors"

var (
	// ErrGatheringNotFound indicates that the referenced gathering id does
	// not exist.
	ErrGatheringNotFound = errors.New("gathering not found")

	// ErrGatheringCancelled is returned when an action targets a gathering
	// already resolved to cancelled.
	ErrGatheringCancelled = errors.New("gathering cancelled")

	// ErrDeadlinePassed is returned when a join is attempted after the
	// recruitment window closed. It applies even to confirmed gatherings:
	// arriving after the deadline never grants membership.
	ErrDeadlinePassed = errors.New("join deadline passed")

	// ErrGatheringFull is returned when a join would exceed max_people
	// currently joined participants.
	ErrGatheringFull = errors.New("gathering full")

	// ErrInvalidInput is returned for malformed creation payloads
	// (non-positive capacities, min > max, missing start time).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRating is returned when a rating batch is empty or targets
	// nobody who participated in the gathering.
	ErrInvalidRating = errors.New("no ratable participants")
)
