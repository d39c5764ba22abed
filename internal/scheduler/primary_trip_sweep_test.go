package scheduler

import (
	"context"
	"errors"
	"testing"

	"sentra_backend/platform/logger"

	"github.com/stretchr/testify/assert"
)

type fakeFinder struct {
	trips []string
	err   error
	limit int
}

func (f *fakeFinder) ListStalePrimaryTrips(_ context.Context, limit int) ([]string, error) {
	f.limit = limit
	return f.trips, f.err
}

type fakeRefresher struct {
	refreshed []string
	failOn    string
}

func (r *fakeRefresher) RefreshTrip(_ context.Context, name string) error {
	if name == r.failOn {
		return errors.New("boom")
	}
	r.refreshed = append(r.refreshed, name)
	return nil
}

func TestPrimaryTripSweepRefreshesEachTrip(t *testing.T) {
	finder := &fakeFinder{trips: []string{"TRIP-2", "TRIP-3", "TRIP-4"}}
	refresher := &fakeRefresher{failOn: "TRIP-3"}
	sweep := NewPrimaryTripSweep(finder, refresher, logger.NewNop(), 0)

	n := sweep.sweep(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"TRIP-2", "TRIP-4"}, refresher.refreshed)
	assert.Equal(t, defaultPrimaryTripSweepBatch, finder.limit)
	assert.Equal(t, defaultPrimaryTripSweepInterval, sweep.interval)
}

func TestPrimaryTripSweepSurvivesFinderError(t *testing.T) {
	refresher := &fakeRefresher{}
	sweep := NewPrimaryTripSweep(&fakeFinder{err: errors.New("db down")}, refresher, logger.NewNop(), 0)

	assert.Zero(t, sweep.sweep(context.Background()))
	assert.Empty(t, refresher.refreshed)
}

func TestPrimaryTripSweepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	refresher := &fakeRefresher{}
	sweep := NewPrimaryTripSweep(&fakeFinder{trips: []string{"TRIP-2"}}, refresher, logger.NewNop(), 0)

	sweep.Run(ctx)
	assert.Empty(t, refresher.refreshed)
}
