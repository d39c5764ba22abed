package domain

import "time"

// Document types of the CRM records the engine consumes.
const (
	DocTypeContact       = "Contact"
	DocTypeTrip          = "Trip"
	DocTypeItinerary     = "Itinerary"
	DocTypeCommunication = "Communication"
)

// Communication directions.
const (
	DirectionSent     = "Sent"
	DirectionReceived = "Received"
)

// ExactDates is the flexible-days value meaning the trip has no flexibility.
const ExactDates = "Exact dates"

// BusinessRecord is a CRM record whose change notification drives the
// engine's business entry point. Trip and Itinerary implement it.
type BusinessRecord interface {
	DocType() string
	DocName() string
}

// TripDestination is one destination-city row of a trip.
type TripDestination struct {
	Destination string `json:"destination"`
}

// Passenger is one passenger-detail row of a trip.
type Passenger struct {
	FullName string `json:"full_name,omitempty"`
}

// Trip is the CRM trip record. Optional fields are nil when absent.
type Trip struct {
	Name             string            `json:"name" validate:"required,notblank"`
	Customer         string            `json:"customer"`
	Destinations     []TripDestination `json:"destination_city"`
	StartDate        *time.Time        `json:"start_date"`
	EndDate          *time.Time        `json:"end_date"`
	FlexibleDays     *string           `json:"flexible_days"`
	Pax              *int              `json:"pax"`
	PassengerDetails []Passenger       `json:"passenger_details"`
	Creation         time.Time         `json:"creation"`
}

func (t *Trip) DocType() string { return DocTypeTrip }
func (t *Trip) DocName() string { return t.Name }

// Itinerary is the CRM itinerary record.
type Itinerary struct {
	Name      string     `json:"name" validate:"required,notblank"`
	Trip      string     `json:"trip"`
	Status    string     `json:"status"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
	Creation  time.Time  `json:"creation"`
}

func (i *Itinerary) DocType() string { return DocTypeItinerary }
func (i *Itinerary) DocName() string { return i.Name }

// TimelineLink is one timeline-link row of a communication.
type TimelineLink struct {
	LinkDocType string `json:"link_doctype"`
	LinkName    string `json:"link_name"`
}

// Communication is the CRM communication record.
type Communication struct {
	Name             string         `json:"name" validate:"required,notblank"`
	ReferenceDocType string         `json:"reference_doctype"`
	ReferenceName    string         `json:"reference_name"`
	TimelineLinks    []TimelineLink `json:"timeline_links"`
	Content          string         `json:"content"`
	Subject          string         `json:"subject"`
	SentOrReceived   string         `json:"sent_or_received"`
	PhoneNo          string         `json:"phone_no"`
	Creation         time.Time      `json:"creation"`
}

// TripSummary is the subset of a trip used by the primary-trip heuristic.
type TripSummary struct {
	Name      string
	StartDate *time.Time
	Creation  time.Time
}
