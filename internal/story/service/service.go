package service

import (
	"context"
	"errors"

	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/normalize"
	"sentra_backend/internal/story/repository"
	"sentra_backend/internal/story/transport"
	"sentra_backend/platform/apperr"
	"sentra_backend/platform/logger"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// Store is the persistence the service needs: the CRM record mirror plus
// story reads.
type Store interface {
	UpsertTrip(ctx context.Context, trip *domain.Trip) error
	UpsertItinerary(ctx context.Context, itinerary *domain.Itinerary) error
	GetTrip(ctx context.Context, name string) (*domain.Trip, error)
	GetStoryByContact(ctx context.Context, contact string) (*domain.Story, error)
	ListEvents(ctx context.Context, contact string, limit int) ([]domain.Event, error)
}

// Processor applies CRM changes to stories.
type Processor interface {
	UpdateFromTrip(ctx context.Context, trip *domain.Trip) error
	UpdateFromItinerary(ctx context.Context, itinerary *domain.Itinerary) error
	UpdateFromComm(ctx context.Context, comm *domain.Communication) error
}

// Enqueuer hands CRM changes to the background worker.
type Enqueuer interface {
	EnqueueTripChanged(ctx context.Context, trip *domain.Trip) error
	EnqueueItineraryChanged(ctx context.Context, itinerary *domain.Itinerary) error
	EnqueueCommunicationCreated(ctx context.Context, comm *domain.Communication) error
}

// Service provides the story use cases behind the hooks, the worker and the
// read API.
type Service struct {
	store    Store
	engine   Processor
	enqueuer Enqueuer
	log      *logger.Logger
}

// New creates a story service. Changes are processed inline until an
// enqueuer is set.
func New(store Store, engine Processor, log *logger.Logger) *Service {
	return &Service{store: store, engine: engine, log: log}
}

// SetEnqueuer routes submitted changes through the task queue.
func (s *Service) SetEnqueuer(enqueuer Enqueuer) {
	s.enqueuer = enqueuer
}

// Async reports whether submitted changes are queued.
func (s *Service) Async() bool {
	return s.enqueuer != nil
}

// SubmitTrip queues or processes a trip change. It reports whether the
// change was queued.
func (s *Service) SubmitTrip(ctx context.Context, trip *domain.Trip) (bool, error) {
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueTripChanged(ctx, trip); err != nil {
			return false, apperr.Wrap(apperr.KindInternal, "failed to queue trip change", err)
		}
		s.log.WithContext(ctx).Debug("trip change queued", "trip", trip.Name)
		return true, nil
	}
	return false, s.ProcessTrip(ctx, trip)
}

// SubmitItinerary queues or processes an itinerary change.
func (s *Service) SubmitItinerary(ctx context.Context, itinerary *domain.Itinerary) (bool, error) {
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueItineraryChanged(ctx, itinerary); err != nil {
			return false, apperr.Wrap(apperr.KindInternal, "failed to queue itinerary change", err)
		}
		s.log.WithContext(ctx).Debug("itinerary change queued", "itinerary", itinerary.Name)
		return true, nil
	}
	return false, s.ProcessItinerary(ctx, itinerary)
}

// SubmitCommunication queues or processes a new communication.
func (s *Service) SubmitCommunication(ctx context.Context, comm *domain.Communication) (bool, error) {
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueCommunicationCreated(ctx, comm); err != nil {
			return false, apperr.Wrap(apperr.KindInternal, "failed to queue communication", err)
		}
		s.log.WithContext(ctx).Debug("communication queued", "communication", comm.Name)
		return true, nil
	}
	return false, s.ProcessCommunication(ctx, comm)
}

// ProcessTrip mirrors the trip and updates its customer's story.
func (s *Service) ProcessTrip(ctx context.Context, trip *domain.Trip) error {
	if err := s.store.UpsertTrip(ctx, trip); err != nil {
		return err
	}
	return s.engine.UpdateFromTrip(ctx, trip)
}

// ProcessItinerary mirrors the itinerary and updates the story of its
// trip's customer.
func (s *Service) ProcessItinerary(ctx context.Context, itinerary *domain.Itinerary) error {
	if err := s.store.UpsertItinerary(ctx, itinerary); err != nil {
		return err
	}
	return tripNotFound(s.engine.UpdateFromItinerary(ctx, itinerary))
}

// ProcessCommunication updates the story of the communication's contact.
// Communications are not mirrored.
func (s *Service) ProcessCommunication(ctx context.Context, comm *domain.Communication) error {
	return tripNotFound(s.engine.UpdateFromComm(ctx, comm))
}

// tripNotFound marks a missing trip as NotFound. It stays retryable: the
// trip may simply not have been stored yet.
func tripNotFound(err error) error {
	if errors.Is(err, repository.ErrTripNotFound) {
		return apperr.Wrap(apperr.KindNotFound, "trip not found", err)
	}
	return err
}

// RefreshTrip replays the stored trip through the engine.
func (s *Service) RefreshTrip(ctx context.Context, name string) error {
	trip, err := s.store.GetTrip(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return apperr.NotFound("trip not found")
		}
		return err
	}
	return s.engine.UpdateFromTrip(ctx, trip)
}

// GetStory returns the contact's story.
func (s *Service) GetStory(ctx context.Context, contact string) (transport.StoryResponse, error) {
	story, err := s.store.GetStoryByContact(ctx, contact)
	if err != nil {
		if errors.Is(err, repository.ErrStoryNotFound) {
			return transport.StoryResponse{}, apperr.NotFound("story not found")
		}
		return transport.StoryResponse{}, err
	}
	return toStoryResponse(story), nil
}

// ListEvents returns up to limit of the contact's story events, newest
// first.
func (s *Service) ListEvents(ctx context.Context, contact string, limit int) (transport.ListEventsResponse, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	items, err := s.store.ListEvents(ctx, contact, limit)
	if err != nil {
		return transport.ListEventsResponse{}, err
	}

	resp := transport.ListEventsResponse{Items: make([]transport.EventResponse, 0, len(items))}
	for _, e := range items {
		resp.Items = append(resp.Items, transport.EventResponse{
			ID:            e.ID,
			Contact:       e.Contact,
			EventType:     e.EventType,
			SourceDocType: e.SourceDocType,
			SourceRef:     e.SourceRef,
			Diff:          e.Diff,
			Actor:         e.Actor,
			CreatedAt:     e.CreatedAt,
		})
	}
	return resp, nil
}

func toStoryResponse(story *domain.Story) transport.StoryResponse {
	resp := transport.StoryResponse{
		ID:              story.ID,
		Contact:         story.Contact,
		Stage:           story.Stage.String(),
		StoryVersion:    story.StoryVersion,
		PrimaryTrip:     story.PrimaryTrip,
		LastBuiltAt:     story.LastBuiltAt,
		LastTouchFrom:   story.LastTouchFrom,
		LastTouchReason: story.LastTouchReason,
		Facts:           make([]transport.FactResponse, 0, len(story.Facts)),
		Itineraries:     make([]transport.ItineraryResponse, 0, len(story.Itineraries)),
		FactTree:        normalize.FactsToMap(story.Facts),
		CreatedAt:       story.CreatedAt,
		UpdatedAt:       story.UpdatedAt,
	}
	for _, f := range story.Facts {
		resp.Facts = append(resp.Facts, transport.FactResponse{
			Key:           f.Key,
			Value:         f.Value,
			Precedence:    f.Precedence,
			SourceDocType: f.SourceDocType,
			SourceDoc:     f.SourceDoc,
			LastSeenAt:    f.LastSeenAt,
		})
	}
	for _, it := range story.Itineraries {
		resp.Itineraries = append(resp.Itineraries, transport.ItineraryResponse{
			Itinerary: it.Itinerary,
			Status:    it.Status,
			ValidFrom: it.ValidFrom,
			ValidTo:   it.ValidTo,
		})
	}
	return resp
}
