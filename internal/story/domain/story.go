// Package domain holds the story aggregate, its child rows, and the CRM
// records the story engine consumes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actor and touch values written by the engine.
const (
	ActorSystem = "system"

	TouchFromSystem = "system"

	PrecedenceBusinessObject = "business_object"
)

// Event types of story events.
const (
	EventTypeBusinessObjectUpdated = "business_object_updated"
	EventTypeCommunicationCreated  = "communication_created"
)

// Mutation reasons recorded in LastTouchReason.
const (
	ReasonEnsureStory        = "ensure_story"
	ReasonTripUpdated        = "trip_updated"
	ReasonItineraryUpdated   = "itinerary_updated"
	ReasonInboundMessage     = "inbound_message"
	ReasonFirstItinerarySent = "first_itinerary_sent"
)

// Well-known fact keys.
const (
	FactProposalItinerary = "proposal.itinerary"
	FactProposalSentAt    = "proposal.sent_at"
)

// Story is the per-contact aggregate. At most one exists per contact.
type Story struct {
	ID              uuid.UUID
	Contact         string
	Stage           Stage
	StoryVersion    int
	PrimaryTrip     *string
	LastBuiltAt     time.Time
	LastTouchFrom   string
	LastTouchReason string
	Facts           []Fact
	Itineraries     []ItinerarySnapshot
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Fact is a named piece of derived state keyed by a dotted path.
type Fact struct {
	Key           string
	Value         string
	Precedence    string
	SourceDocType *string
	SourceDoc     *string
	LastSeenAt    *time.Time
	CreatedAt     time.Time
}

// ItinerarySnapshot mirrors the latest known state of an itinerary that
// belongs to one of the contact's trips.
type ItinerarySnapshot struct {
	Itinerary string
	Status    string
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// Event is an immutable audit record of a stage change or notable touch.
type Event struct {
	ID            uuid.UUID
	Contact       string
	EventType     string
	SourceDocType *string
	SourceRef     *string
	Diff          map[string]any
	Actor         string
	CreatedAt     time.Time
}

// FindFact returns the fact row with key, if present.
func (s *Story) FindFact(key string) (*Fact, bool) {
	for i := range s.Facts {
		if s.Facts[i].Key == key {
			return &s.Facts[i], true
		}
	}
	return nil, false
}

// FindItinerary returns the snapshot row for itinerary, if present.
func (s *Story) FindItinerary(itinerary string) (*ItinerarySnapshot, bool) {
	for i := range s.Itineraries {
		if s.Itineraries[i].Itinerary == itinerary {
			return &s.Itineraries[i], true
		}
	}
	return nil, false
}

// ItineraryStatuses returns the non-empty statuses of the snapshot rows.
func (s *Story) ItineraryStatuses() []string {
	statuses := make([]string, 0, len(s.Itineraries))
	for _, row := range s.Itineraries {
		if row.Status != "" {
			statuses = append(statuses, row.Status)
		}
	}
	return statuses
}

// StageDiff builds the diff payload recorded on a stage-changing event.
func StageDiff(from, to Stage) map[string]any {
	return map[string]any{
		"stage": map[string]any{
			"from": string(from),
			"to":   string(to),
		},
	}
}
