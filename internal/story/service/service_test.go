package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/repository"
	"sentra_backend/platform/apperr"
	"sentra_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	trips       map[string]*domain.Trip
	itineraries map[string]*domain.Itinerary
	stories     map[string]*domain.Story
	events      []domain.Event
	lastLimit   int
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trips:       map[string]*domain.Trip{},
		itineraries: map[string]*domain.Itinerary{},
		stories:     map[string]*domain.Story{},
	}
}

func (f *fakeStore) UpsertTrip(_ context.Context, trip *domain.Trip) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.trips[trip.Name] = trip
	return nil
}

func (f *fakeStore) UpsertItinerary(_ context.Context, itinerary *domain.Itinerary) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.itineraries[itinerary.Name] = itinerary
	return nil
}

func (f *fakeStore) GetTrip(_ context.Context, name string) (*domain.Trip, error) {
	trip, ok := f.trips[name]
	if !ok {
		return nil, repository.ErrTripNotFound
	}
	return trip, nil
}

func (f *fakeStore) GetStoryByContact(_ context.Context, contact string) (*domain.Story, error) {
	story, ok := f.stories[contact]
	if !ok {
		return nil, repository.ErrStoryNotFound
	}
	return story, nil
}

func (f *fakeStore) ListEvents(_ context.Context, _ string, limit int) ([]domain.Event, error) {
	f.lastLimit = limit
	return f.events, nil
}

type fakeProcessor struct {
	trips       []string
	itineraries []string
	comms       []string
	err         error
}

func (p *fakeProcessor) UpdateFromTrip(_ context.Context, trip *domain.Trip) error {
	p.trips = append(p.trips, trip.Name)
	return p.err
}

func (p *fakeProcessor) UpdateFromItinerary(_ context.Context, itinerary *domain.Itinerary) error {
	p.itineraries = append(p.itineraries, itinerary.Name)
	return p.err
}

func (p *fakeProcessor) UpdateFromComm(_ context.Context, comm *domain.Communication) error {
	p.comms = append(p.comms, comm.Name)
	return p.err
}

type fakeEnqueuer struct {
	queued []string
	err    error
}

func (q *fakeEnqueuer) EnqueueTripChanged(_ context.Context, trip *domain.Trip) error {
	q.queued = append(q.queued, trip.Name)
	return q.err
}

func (q *fakeEnqueuer) EnqueueItineraryChanged(_ context.Context, itinerary *domain.Itinerary) error {
	q.queued = append(q.queued, itinerary.Name)
	return q.err
}

func (q *fakeEnqueuer) EnqueueCommunicationCreated(_ context.Context, comm *domain.Communication) error {
	q.queued = append(q.queued, comm.Name)
	return q.err
}

func TestSubmitTripProcessesInline(t *testing.T) {
	store := newFakeStore()
	proc := &fakeProcessor{}
	svc := New(store, proc, logger.NewNop())

	queued, err := svc.SubmitTrip(context.Background(), &domain.Trip{Name: "TRIP-1", Customer: "C1"})
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Contains(t, store.trips, "TRIP-1")
	assert.Equal(t, []string{"TRIP-1"}, proc.trips)
}

func TestSubmitQueuesWhenEnqueuerSet(t *testing.T) {
	store := newFakeStore()
	proc := &fakeProcessor{}
	queue := &fakeEnqueuer{}
	svc := New(store, proc, logger.NewNop())
	svc.SetEnqueuer(queue)

	ctx := context.Background()
	queued, err := svc.SubmitTrip(ctx, &domain.Trip{Name: "TRIP-1"})
	require.NoError(t, err)
	assert.True(t, queued)
	_, err = svc.SubmitItinerary(ctx, &domain.Itinerary{Name: "ITIN-01"})
	require.NoError(t, err)
	_, err = svc.SubmitCommunication(ctx, &domain.Communication{Name: "COMM-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"TRIP-1", "ITIN-01", "COMM-1"}, queue.queued)
	assert.Empty(t, proc.trips)
	assert.Empty(t, store.trips)
}

func TestSubmitQueueFailureIsInternal(t *testing.T) {
	svc := New(newFakeStore(), &fakeProcessor{}, logger.NewNop())
	svc.SetEnqueuer(&fakeEnqueuer{err: errors.New("redis down")})

	_, err := svc.SubmitItinerary(context.Background(), &domain.Itinerary{Name: "ITIN-01"})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestProcessTripStopsOnMirrorFailure(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("db down")
	proc := &fakeProcessor{}
	svc := New(store, proc, logger.NewNop())

	err := svc.ProcessTrip(context.Background(), &domain.Trip{Name: "TRIP-1"})
	require.Error(t, err)
	assert.Empty(t, proc.trips)
}

func TestProcessItineraryMirrorsThenUpdates(t *testing.T) {
	store := newFakeStore()
	proc := &fakeProcessor{}
	svc := New(store, proc, logger.NewNop())

	require.NoError(t, svc.ProcessItinerary(context.Background(), &domain.Itinerary{Name: "ITIN-01", Trip: "TRIP-1"}))
	assert.Contains(t, store.itineraries, "ITIN-01")
	assert.Equal(t, []string{"ITIN-01"}, proc.itineraries)
}

func TestProcessReportsMissingTripAsRetryableNotFound(t *testing.T) {
	proc := &fakeProcessor{err: fmt.Errorf("load trip TRIP-9: %w", repository.ErrTripNotFound)}
	svc := New(newFakeStore(), proc, logger.NewNop())
	ctx := context.Background()

	err := svc.ProcessItinerary(ctx, &domain.Itinerary{Name: "ITIN-9", Trip: "TRIP-9"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.IsRetryable(err))
	assert.ErrorIs(t, err, repository.ErrTripNotFound)

	err = svc.ProcessCommunication(ctx, &domain.Communication{Name: "COMM-1"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	proc.err = errors.New("db down")
	err = svc.ProcessItinerary(ctx, &domain.Itinerary{Name: "ITIN-9", Trip: "TRIP-9"})
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))
}

func TestRefreshTrip(t *testing.T) {
	store := newFakeStore()
	store.trips["TRIP-1"] = &domain.Trip{Name: "TRIP-1", Customer: "C1"}
	proc := &fakeProcessor{}
	svc := New(store, proc, logger.NewNop())

	require.NoError(t, svc.RefreshTrip(context.Background(), "TRIP-1"))
	assert.Equal(t, []string{"TRIP-1"}, proc.trips)

	err := svc.RefreshTrip(context.Background(), "TRIP-404")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetStory(t *testing.T) {
	store := newFakeStore()
	seen := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	store.stories["C1"] = &domain.Story{
		ID:           uuid.New(),
		Contact:      "C1",
		Stage:        domain.StageProposal,
		StoryVersion: 3,
		Facts: []domain.Fact{
			{Key: "intent.pax", Value: "2", LastSeenAt: &seen},
			{Key: "intent.destinations", Value: `["Paris"]`, LastSeenAt: &seen},
		},
		Itineraries: []domain.ItinerarySnapshot{{Itinerary: "ITIN-01", Status: "Draft"}},
	}
	svc := New(store, &fakeProcessor{}, logger.NewNop())

	resp, err := svc.GetStory(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "Proposal", resp.Stage)
	assert.Len(t, resp.Facts, 2)
	assert.Len(t, resp.Itineraries, 1)
	intent, ok := resp.FactTree["intent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2", intent["pax"])
	assert.Equal(t, []any{"Paris"}, intent["destinations"])

	_, err = svc.GetStory(context.Background(), "C404")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListEventsClampsLimit(t *testing.T) {
	store := newFakeStore()
	store.events = []domain.Event{{ID: uuid.New(), Contact: "C1", EventType: domain.EventTypeBusinessObjectUpdated, Actor: domain.ActorSystem}}
	svc := New(store, &fakeProcessor{}, logger.NewNop())

	resp, err := svc.ListEvents(context.Background(), "C1", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultEventLimit, store.lastLimit)
	assert.Len(t, resp.Items, 1)

	_, err = svc.ListEvents(context.Background(), "C1", 10_000)
	require.NoError(t, err)
	assert.Equal(t, maxEventLimit, store.lastLimit)
}
