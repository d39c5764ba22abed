package scheduler

import (
	"context"
	"time"

	"sentra_backend/platform/logger"
)

const (
	defaultPrimaryTripSweepInterval = time.Hour
	defaultPrimaryTripSweepBatch    = 200
)

// StaleTripFinder lists the upcoming trips of contacts whose primary trip
// has already started.
type StaleTripFinder interface {
	ListStalePrimaryTrips(ctx context.Context, limit int) ([]string, error)
}

// TripRefresher replays a stored trip through the story engine.
type TripRefresher interface {
	RefreshTrip(ctx context.Context, name string) error
}

// PrimaryTripSweep periodically moves stories off primary trips that have
// started once the contact has an upcoming trip.
type PrimaryTripSweep struct {
	finder    StaleTripFinder
	refresher TripRefresher
	log       *logger.Logger
	interval  time.Duration
	batch     int
}

func NewPrimaryTripSweep(finder StaleTripFinder, refresher TripRefresher, log *logger.Logger, interval time.Duration) *PrimaryTripSweep {
	if interval <= 0 {
		interval = defaultPrimaryTripSweepInterval
	}
	return &PrimaryTripSweep{
		finder:    finder,
		refresher: refresher,
		log:       log,
		interval:  interval,
		batch:     defaultPrimaryTripSweepBatch,
	}
}

// SetBatchSize caps how many trips a single sweep refreshes.
func (s *PrimaryTripSweep) SetBatchSize(n int) {
	if n > 0 {
		s.batch = n
	}
}

func (s *PrimaryTripSweep) Run(ctx context.Context) {
	if s == nil || s.finder == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *PrimaryTripSweep) sweep(ctx context.Context) int {
	trips, err := s.finder.ListStalePrimaryTrips(ctx, s.batch)
	if err != nil {
		s.log.Warn("primary trip sweep failed", "error", err)
		return 0
	}

	refreshed := 0
	for _, trip := range trips {
		if ctx.Err() != nil {
			break
		}
		if err := s.refresher.RefreshTrip(ctx, trip); err != nil {
			s.log.Warn("primary trip refresh failed", "trip", trip, "error", err)
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		s.log.Info("primary trip sweep refreshed stories", "refreshed", refreshed)
	}
	return refreshed
}
