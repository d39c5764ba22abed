package engine

import (
	"context"
	"fmt"
	"time"

	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/normalize"
	"sentra_backend/internal/story/rules"
)

// UpdateFromBusiness applies a trip or itinerary change.
func (e *Engine) UpdateFromBusiness(ctx context.Context, record domain.BusinessRecord) error {
	switch r := record.(type) {
	case *domain.Trip:
		return e.UpdateFromTrip(ctx, r)
	case *domain.Itinerary:
		return e.UpdateFromItinerary(ctx, r)
	default:
		return fmt.Errorf("unsupported business record %T", record)
	}
}

// UpdateFromTrip applies a trip change to the customer's story. Trips
// without a customer are ignored.
func (e *Engine) UpdateFromTrip(ctx context.Context, trip *domain.Trip) error {
	defer observeDuration(entryTrip, time.Now())

	if trip == nil || trip.Customer == "" {
		e.skip(entryTrip, "no_customer", "trip", tripName(trip))
		return nil
	}

	return e.withContactLock(ctx, trip.Customer, func(ctx context.Context) error {
		story, err := e.EnsureStory(ctx, trip.Customer)
		if err != nil {
			return err
		}
		if err := e.refreshPrimaryTrip(ctx, story); err != nil {
			return err
		}

		signals, err := e.tripSignals(ctx, trip)
		if err != nil {
			return err
		}
		signals.ProposalSent = rules.ProposalSent(normalize.FactsToMap(story.Facts))

		_, err = e.ChooseAndUpdateStage(ctx, story, StageChange{
			Signals:       signals,
			Reason:        domain.ReasonTripUpdated,
			SourceDocType: domain.DocTypeTrip,
			SourceRef:     trip.Name,
		})
		return err
	})
}

// UpdateFromItinerary refreshes the itinerary snapshot on the story of the
// trip's customer. Itineraries without a trip, and trips without a
// customer, are ignored. An unknown trip yields an error wrapping
// repository.ErrTripNotFound.
func (e *Engine) UpdateFromItinerary(ctx context.Context, itinerary *domain.Itinerary) error {
	defer observeDuration(entryItinerary, time.Now())

	if itinerary == nil || itinerary.Trip == "" {
		e.skip(entryItinerary, "no_trip", "itinerary", itineraryName(itinerary))
		return nil
	}

	// A trip that is not stored yet is an error so the change is redelivered
	// once the trip arrives.
	trip, err := e.records.GetTrip(ctx, itinerary.Trip)
	if err != nil {
		return fmt.Errorf("load trip %s: %w", itinerary.Trip, err)
	}
	if trip.Customer == "" {
		e.skip(entryItinerary, "no_customer", "itinerary", itinerary.Name, "trip", trip.Name)
		return nil
	}

	return e.withContactLock(ctx, trip.Customer, func(ctx context.Context) error {
		story, err := e.EnsureStory(ctx, trip.Customer)
		if err != nil {
			return err
		}

		if row, ok := story.FindItinerary(itinerary.Name); ok {
			row.Status = itinerary.Status
			row.ValidFrom = itinerary.ValidFrom
			row.ValidTo = itinerary.ValidTo
		} else {
			story.Itineraries = append(story.Itineraries, domain.ItinerarySnapshot{
				Itinerary: itinerary.Name,
				Status:    itinerary.Status,
				ValidFrom: itinerary.ValidFrom,
				ValidTo:   itinerary.ValidTo,
			})
		}
		if err := e.saveStory(ctx, story); err != nil {
			return fmt.Errorf("save itinerary snapshot %s: %w", itinerary.Name, err)
		}

		signals, err := e.tripSignals(ctx, trip)
		if err != nil {
			return err
		}
		signals.ProposalSent = rules.ProposalSent(normalize.FactsToMap(story.Facts))

		_, err = e.ChooseAndUpdateStage(ctx, story, StageChange{
			Signals:       signals,
			Reason:        domain.ReasonItineraryUpdated,
			SourceDocType: domain.DocTypeItinerary,
			SourceRef:     itinerary.Name,
		})
		return err
	})
}

// tripSignals derives readiness and itinerary presence from a trip.
func (e *Engine) tripSignals(ctx context.Context, trip *domain.Trip) (rules.Signals, error) {
	itineraries, err := e.records.ListItinerariesForTrip(ctx, trip.Name)
	if err != nil {
		return rules.Signals{}, fmt.Errorf("list itineraries for %s: %w", trip.Name, err)
	}

	statuses := make([]string, 0, len(itineraries))
	for _, it := range itineraries {
		statuses = append(statuses, it.Status)
	}

	return rules.Signals{
		HasContact:        true,
		HasItinerary:      len(itineraries) > 0,
		ItineraryStatuses: statuses,
		TripReady:         rules.TripReadyForProposal(normalize.IntentFromTrip(trip)),
	}, nil
}

func tripName(t *domain.Trip) string {
	if t == nil {
		return ""
	}
	return t.Name
}

func itineraryName(i *domain.Itinerary) string {
	if i == nil {
		return ""
	}
	return i.Name
}
