package engine

import (
	"context"
	"fmt"
	"time"

	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/extract"
	"sentra_backend/internal/story/normalize"
	"sentra_backend/internal/story/rules"
)

// UpdateFromComm applies a new communication to the story of its contact.
// Outbound messages carrying an itinerary reference mark the first proposal
// as sent. Inbound messages recompute the stage from the primary trip.
func (e *Engine) UpdateFromComm(ctx context.Context, comm *domain.Communication) error {
	defer observeDuration(entryCommunication, time.Now())

	if comm == nil {
		return nil
	}

	contact := e.resolveCommContact(ctx, comm)
	if contact == "" {
		e.skip(entryCommunication, "no_contact", "communication", comm.Name)
		return nil
	}

	return e.withContactLock(ctx, contact, func(ctx context.Context) error {
		story, err := e.EnsureStory(ctx, contact)
		if err != nil {
			return err
		}

		switch comm.SentOrReceived {
		case domain.DirectionSent:
			return e.handleSent(ctx, story, comm)
		case domain.DirectionReceived:
			return e.handleReceived(ctx, story, comm)
		default:
			return nil
		}
	})
}

func (e *Engine) resolveCommContact(ctx context.Context, comm *domain.Communication) string {
	if comm.ReferenceDocType == domain.DocTypeContact && comm.ReferenceName != "" {
		return comm.ReferenceName
	}
	if comm.PhoneNo == "" || e.resolver == nil {
		return ""
	}

	contact, err := e.resolver.ResolveContact(ctx, comm.PhoneNo)
	if err != nil {
		e.log.WithContext(ctx).Warn("contact resolution failed", "communication", comm.Name, "error", err)
		return ""
	}
	return contact
}

func (e *Engine) handleSent(ctx context.Context, story *domain.Story, comm *domain.Communication) error {
	ref, method, ok := extract.ItineraryRef(comm)
	if !ok {
		return nil
	}
	if rules.ProposalSent(normalize.FactsToMap(story.Facts)) {
		e.log.WithContext(ctx).Debug("proposal already sent", "contact", story.Contact, "itinerary", ref)
		return nil
	}

	e.log.WithContext(ctx).Info("first proposal detected",
		"contact", story.Contact, "itinerary", ref, "method", method, "communication", comm.Name)
	return e.markProposalSent(ctx, story, ref, comm.Name, comm.Creation)
}

func (e *Engine) handleReceived(ctx context.Context, story *domain.Story, comm *domain.Communication) error {
	signals := rules.Signals{HasContact: true}

	trip, err := e.primaryTrip(ctx, story)
	if err != nil {
		return err
	}
	if trip != nil {
		if signals, err = e.tripSignals(ctx, trip); err != nil {
			return err
		}
	}
	signals.ProposalSent = rules.ProposalSent(normalize.FactsToMap(story.Facts))

	_, err = e.ChooseAndUpdateStage(ctx, story, StageChange{
		Signals:       signals,
		Reason:        domain.ReasonInboundMessage,
		SourceDocType: domain.DocTypeCommunication,
		SourceRef:     comm.Name,
		EventType:     domain.EventTypeCommunicationCreated,
	})
	return err
}

// MarkProposalSent records that itinerary was sent to contact by the
// communication commName and moves the story on accordingly.
func (e *Engine) MarkProposalSent(ctx context.Context, contact, itinerary, commName string, sentAt time.Time) error {
	defer observeDuration(entryProposal, time.Now())

	return e.withContactLock(ctx, contact, func(ctx context.Context) error {
		story, err := e.EnsureStory(ctx, contact)
		if err != nil {
			return err
		}
		return e.markProposalSent(ctx, story, itinerary, commName, sentAt)
	})
}

func (e *Engine) markProposalSent(ctx context.Context, story *domain.Story, itinerary, commName string, sentAt time.Time) error {
	if err := e.UpsertFact(ctx, story, FactInput{
		Key:           domain.FactProposalItinerary,
		Value:         itinerary,
		SourceDocType: domain.DocTypeCommunication,
		SourceName:    commName,
	}); err != nil {
		return err
	}
	if err := e.UpsertFact(ctx, story, FactInput{
		Key:           domain.FactProposalSentAt,
		Value:         sentAt,
		SourceDocType: domain.DocTypeCommunication,
		SourceName:    commName,
	}); err != nil {
		return err
	}

	tripReady := false
	trip, err := e.primaryTrip(ctx, story)
	if err != nil {
		return err
	}
	if trip != nil {
		tripReady = rules.TripReadyForProposal(normalize.IntentFromTrip(trip))
	}

	_, err = e.ChooseAndUpdateStage(ctx, story, StageChange{
		Signals: rules.Signals{
			HasContact:        true,
			HasItinerary:      len(story.Itineraries) > 0,
			ItineraryStatuses: story.ItineraryStatuses(),
			TripReady:         tripReady,
			ProposalSent:      true,
		},
		Reason:        domain.ReasonFirstItinerarySent,
		SourceDocType: domain.DocTypeCommunication,
		SourceRef:     commName,
	})
	return err
}

// primaryTrip loads the story's primary trip, or nil when the story has
// none. A reference to a trip that is not stored fails with
// repository.ErrTripNotFound.
func (e *Engine) primaryTrip(ctx context.Context, story *domain.Story) (*domain.Trip, error) {
	if story.PrimaryTrip == nil || *story.PrimaryTrip == "" {
		return nil, nil
	}
	trip, err := e.records.GetTrip(ctx, *story.PrimaryTrip)
	if err != nil {
		return nil, fmt.Errorf("load primary trip %s: %w", *story.PrimaryTrip, err)
	}
	return trip, nil
}
