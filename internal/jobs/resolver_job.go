// Package jobs contains background workers that run alongside the HTTP
// server. This file implements the status resolver sweep: gatherings whose
// join deadline has passed are settled to confirmed or cancelled even when
// nobody reads them, so feeds and credit flows never depend on request
// traffic to observe a terminal state.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tablemate/go-gather-backend/internal/services"
)

// ResolverJob periodically settles overdue gathering statuses.
//
// Reads already resolve lazily; the job exists so a gathering nobody looks at
// still reaches its terminal state close to its deadline. Safe to run next to
// lazy resolution because status transitions are idempotent.
type ResolverJob struct {
	Gatherings *services.GatheringService
	Interval   time.Duration

	ticker *time.Ticker
	done   chan struct{}
	stop   sync.Once
}

// NewResolverJob builds a job that sweeps every interval. Intervals <= 0 fall
// back to one minute.
func NewResolverJob(gatherings *services.GatheringService, interval time.Duration) *ResolverJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ResolverJob{
		Gatherings: gatherings,
		Interval:   interval,
		done:       make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. One sweep runs
// immediately so a restart settles backlog without waiting a full interval.
func (j *ResolverJob) Start() {
	j.ticker = time.NewTicker(j.Interval)
	log.Info().Dur("interval", j.Interval).Msg("status resolver started")

	go func() {
		j.sweep()
		for {
			select {
			case <-j.ticker.C:
				j.sweep()
			case <-j.done:
				log.Info().Msg("status resolver stopped")
				return
			}
		}
	}()
}

// Stop halts the sweep loop. Safe to call more than once.
func (j *ResolverJob) Stop() {
	j.stop.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

func (j *ResolverJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	changed, err := j.Gatherings.ResolveAll(ctx, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("status resolver sweep failed")
		return
	}
	if changed > 0 {
		log.Info().Int("settled", changed).Msg("status resolver settled gatherings")
	}
}
