package engine

import (
	"context"

	"sentra_backend/internal/story/domain"
)

// StoryStore persists stories and their events.
type StoryStore interface {
	// GetStoryByContact returns repository.ErrStoryNotFound when the contact
	// has no story yet.
	GetStoryByContact(ctx context.Context, contact string) (*domain.Story, error)
	// CreateStory returns repository.ErrStoryExists when a story for the
	// contact already exists.
	CreateStory(ctx context.Context, story *domain.Story) error
	// SaveStory writes the story row with its facts and itinerary snapshots
	// atomically.
	SaveStory(ctx context.Context, story *domain.Story) error
	InsertEvent(ctx context.Context, event domain.Event) error
}

// RecordReader reads the CRM records the engine derives stories from.
type RecordReader interface {
	// GetTrip returns repository.ErrTripNotFound for unknown trips.
	GetTrip(ctx context.Context, name string) (*domain.Trip, error)
	// ListTripsForContact returns the contact's trips, newest first.
	ListTripsForContact(ctx context.Context, contact string) ([]domain.TripSummary, error)
	// ListItinerariesForTrip returns the trip's itineraries, oldest first.
	ListItinerariesForTrip(ctx context.Context, trip string) ([]domain.Itinerary, error)
}

// ContactResolver maps a phone number to a contact. An empty result with a
// nil error means no contact matched.
type ContactResolver interface {
	ResolveContact(ctx context.Context, phone string) (string, error)
}
