package engine

import (
	"context"
	"errors"
	"sync"

	"sentra_backend/internal/events"
	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/repository"
)

type fakeStore struct {
	mu      sync.Mutex
	stories map[string]*domain.Story
	events  []domain.Event
	saves   int

	// createConflict makes the next CreateStory fail with ErrStoryExists
	// after storing the story, as if another writer won the race.
	createConflict bool
	saveErr        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{stories: make(map[string]*domain.Story)}
}

func (f *fakeStore) GetStoryByContact(_ context.Context, contact string) (*domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[contact]
	if !ok {
		return nil, repository.ErrStoryNotFound
	}
	return cloneStory(s), nil
}

func (f *fakeStore) CreateStory(_ context.Context, story *domain.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createConflict {
		f.createConflict = false
		winner := cloneStory(story)
		winner.LastTouchReason = "other_writer"
		f.stories[story.Contact] = winner
		return repository.ErrStoryExists
	}
	if _, ok := f.stories[story.Contact]; ok {
		return repository.ErrStoryExists
	}
	f.stories[story.Contact] = cloneStory(story)
	return nil
}

func (f *fakeStore) SaveStory(_ context.Context, story *domain.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.stories[story.Contact] = cloneStory(story)
	return nil
}

func (f *fakeStore) InsertEvent(_ context.Context, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) story(contact string) *domain.Story {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[contact]
	if !ok {
		return nil
	}
	return cloneStory(s)
}

func (f *fakeStore) eventsFor(contact string) []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		if e.Contact == contact {
			out = append(out, e)
		}
	}
	return out
}

func cloneStory(s *domain.Story) *domain.Story {
	c := *s
	c.Facts = append([]domain.Fact(nil), s.Facts...)
	c.Itineraries = append([]domain.ItinerarySnapshot(nil), s.Itineraries...)
	return &c
}

type fakeRecords struct {
	mu          sync.Mutex
	trips       []*domain.Trip
	itineraries []*domain.Itinerary
	err         error
}

func (f *fakeRecords) addTrip(t *domain.Trip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips = append(f.trips, t)
}

func (f *fakeRecords) removeTrip(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for idx, t := range f.trips {
		if t.Name == name {
			f.trips = append(f.trips[:idx], f.trips[idx+1:]...)
			return
		}
	}
}

func (f *fakeRecords) addItinerary(i *domain.Itinerary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for idx, existing := range f.itineraries {
		if existing.Name == i.Name {
			f.itineraries[idx] = i
			return
		}
	}
	f.itineraries = append(f.itineraries, i)
}

func (f *fakeRecords) GetTrip(_ context.Context, name string) (*domain.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.trips {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, repository.ErrTripNotFound
}

func (f *fakeRecords) ListTripsForContact(_ context.Context, contact string) ([]domain.TripSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TripSummary
	for i := len(f.trips) - 1; i >= 0; i-- {
		t := f.trips[i]
		if t.Customer == contact {
			out = append(out, domain.TripSummary{Name: t.Name, StartDate: t.StartDate, Creation: t.Creation})
		}
	}
	return out, nil
}

func (f *fakeRecords) ListItinerariesForTrip(_ context.Context, trip string) ([]domain.Itinerary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Itinerary
	for _, it := range f.itineraries {
		if it.Trip == trip {
			out = append(out, *it)
		}
	}
	return out, nil
}

type fakeResolver struct {
	contacts map[string]string
	err      error
}

func (f fakeResolver) ResolveContact(_ context.Context, phone string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.contacts[phone], nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
}

func (p *recordingPublisher) stageChanges() []events.StoryStageChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.StoryStageChanged
	for _, e := range p.published {
		if sc, ok := e.(events.StoryStageChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

var errBoom = errors.New("boom")
