package transport

import (
	"strings"
	"time"

	"sentra_backend/internal/story/domain"
	"sentra_backend/platform/apperr"

	"github.com/google/uuid"
)

// Hook outcomes reported to the CRM.
const (
	HookStatusProcessed = "processed"
	HookStatusQueued    = "queued"
)

// Accepted date layouts. The CRM sends dates as 2006-01-02 and datetimes
// without a zone.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// DestinationRow is one destination_city child row.
type DestinationRow struct {
	Destination string `json:"destination"`
}

// PassengerRow is one passenger_details child row.
type PassengerRow struct {
	FullName string `json:"full_name"`
}

// TripRequest is the Trip change notification body.
type TripRequest struct {
	Name             string           `json:"name" validate:"required,notblank,max=140"`
	Customer         string           `json:"customer" validate:"max=140"`
	DestinationCity  []DestinationRow `json:"destination_city"`
	StartDate        *string          `json:"start_date"`
	EndDate          *string          `json:"end_date"`
	FlexibleDays     *string          `json:"flexible_days"`
	Pax              *int             `json:"pax" validate:"omitempty,min=0"`
	PassengerDetails []PassengerRow   `json:"passenger_details"`
	Creation         *string          `json:"creation"`
}

// ToDomain converts the request into a trip record.
func (r TripRequest) ToDomain() (*domain.Trip, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return nil, err
	}
	creation, err := parseDate("creation", r.Creation)
	if err != nil {
		return nil, err
	}

	trip := &domain.Trip{
		Name:         strings.TrimSpace(r.Name),
		Customer:     strings.TrimSpace(r.Customer),
		StartDate:    start,
		EndDate:      end,
		FlexibleDays: r.FlexibleDays,
		Pax:          r.Pax,
	}
	if creation != nil {
		trip.Creation = *creation
	}
	for _, d := range r.DestinationCity {
		trip.Destinations = append(trip.Destinations, domain.TripDestination{Destination: d.Destination})
	}
	for _, p := range r.PassengerDetails {
		trip.PassengerDetails = append(trip.PassengerDetails, domain.Passenger{FullName: p.FullName})
	}
	return trip, nil
}

// ItineraryRequest is the Itinerary change notification body.
type ItineraryRequest struct {
	Name      string  `json:"name" validate:"required,notblank,max=140"`
	Trip      string  `json:"trip" validate:"max=140"`
	Status    string  `json:"status" validate:"max=140"`
	ValidFrom *string `json:"valid_from"`
	ValidTo   *string `json:"valid_to"`
	Creation  *string `json:"creation"`
}

// ToDomain converts the request into an itinerary record.
func (r ItineraryRequest) ToDomain() (*domain.Itinerary, error) {
	from, err := parseDate("valid_from", r.ValidFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("valid_to", r.ValidTo)
	if err != nil {
		return nil, err
	}
	creation, err := parseDate("creation", r.Creation)
	if err != nil {
		return nil, err
	}

	itinerary := &domain.Itinerary{
		Name:      strings.TrimSpace(r.Name),
		Trip:      strings.TrimSpace(r.Trip),
		Status:    r.Status,
		ValidFrom: from,
		ValidTo:   to,
	}
	if creation != nil {
		itinerary.Creation = *creation
	}
	return itinerary, nil
}

// TimelineLinkRow is one timeline_links child row.
type TimelineLinkRow struct {
	LinkDoctype string `json:"link_doctype"`
	LinkName    string `json:"link_name"`
}

// CommunicationRequest is the Communication creation notification body.
type CommunicationRequest struct {
	Name             string            `json:"name" validate:"required,notblank,max=140"`
	ReferenceDoctype string            `json:"reference_doctype"`
	ReferenceName    string            `json:"reference_name"`
	TimelineLinks    []TimelineLinkRow `json:"timeline_links"`
	Content          string            `json:"content"`
	Subject          string            `json:"subject"`
	SentOrReceived   string            `json:"sent_or_received"`
	PhoneNo          string            `json:"phone_no"`
	Creation         *string           `json:"creation"`
}

// ToDomain converts the request into a communication record. A missing
// creation time defaults to now.
func (r CommunicationRequest) ToDomain(now time.Time) (*domain.Communication, error) {
	creation, err := parseDate("creation", r.Creation)
	if err != nil {
		return nil, err
	}

	comm := &domain.Communication{
		Name:             strings.TrimSpace(r.Name),
		ReferenceDocType: r.ReferenceDoctype,
		ReferenceName:    r.ReferenceName,
		Content:          r.Content,
		Subject:          r.Subject,
		SentOrReceived:   r.SentOrReceived,
		PhoneNo:          r.PhoneNo,
		Creation:         now,
	}
	if creation != nil {
		comm.Creation = *creation
	}
	for _, l := range r.TimelineLinks {
		comm.TimelineLinks = append(comm.TimelineLinks, domain.TimelineLink{LinkDocType: l.LinkDoctype, LinkName: l.LinkName})
	}
	return comm, nil
}

// ParseDate parses a CRM date or datetime. Nil and blank values yield nil.
func ParseDate(value string) (*time.Time, error) {
	return parseDate("date", &value)
}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("invalid date").WithDetails(map[string]string{"field": field, "value": trimmed})
}

// HookResponse is returned by the change-notification hooks.
type HookResponse struct {
	Status string `json:"status"`
}

// FactResponse is one fact row.
type FactResponse struct {
	Key           string     `json:"key"`
	Value         string     `json:"value"`
	Precedence    string     `json:"precedence"`
	SourceDocType *string    `json:"sourceDocType,omitempty"`
	SourceDoc     *string    `json:"sourceDoc,omitempty"`
	LastSeenAt    *time.Time `json:"lastSeenAt,omitempty"`
}

// ItineraryResponse is one itinerary snapshot row.
type ItineraryResponse struct {
	Itinerary string     `json:"itinerary"`
	Status    string     `json:"status"`
	ValidFrom *time.Time `json:"validFrom,omitempty"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
}

// StoryResponse is a story with its child rows and the folded fact tree.
type StoryResponse struct {
	ID              uuid.UUID           `json:"id"`
	Contact         string              `json:"contact"`
	Stage           string              `json:"stage"`
	StoryVersion    int                 `json:"storyVersion"`
	PrimaryTrip     *string             `json:"primaryTrip,omitempty"`
	LastBuiltAt     time.Time           `json:"lastBuiltAt"`
	LastTouchFrom   string              `json:"lastTouchFrom"`
	LastTouchReason string              `json:"lastTouchReason"`
	Facts           []FactResponse      `json:"facts"`
	Itineraries     []ItineraryResponse `json:"itineraries"`
	FactTree        map[string]any      `json:"factTree"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// EventResponse is one story event.
type EventResponse struct {
	ID            uuid.UUID      `json:"id"`
	Contact       string         `json:"contact"`
	EventType     string         `json:"eventType"`
	SourceDocType *string        `json:"sourceDocType,omitempty"`
	SourceRef     *string        `json:"sourceRef,omitempty"`
	Diff          map[string]any `json:"diff"`
	Actor         string         `json:"actor"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// ListEventsResponse wraps a page of story events.
type ListEventsResponse struct {
	Items []EventResponse `json:"items"`
}
