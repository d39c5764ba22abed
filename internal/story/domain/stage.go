package domain

// Stage is a position in the sales funnel of a contact.
type Stage string

const (
	StageInquiry     Stage = "Inquiry"
	StageDiscovery   Stage = "Discovery"
	StageProposal    Stage = "Proposal"
	StageNegotiation Stage = "Negotiation"
	StageBooking     Stage = "Booking"
	StageFulfillment Stage = "Fulfillment"
	StagePostTrip    Stage = "Post-trip"
)

var stageRanks = map[Stage]int{
	StageInquiry:     0,
	StageDiscovery:   1,
	StageProposal:    2,
	StageNegotiation: 3,
	StageBooking:     4,
	StageFulfillment: 5,
	StagePostTrip:    6,
}

// Stages lists every stage in funnel order.
var Stages = []Stage{
	StageInquiry,
	StageDiscovery,
	StageProposal,
	StageNegotiation,
	StageBooking,
	StageFulfillment,
	StagePostTrip,
}

// Rank returns the position of s in the funnel. Unknown and empty stages
// rank as Inquiry.
func (s Stage) Rank() int {
	return stageRanks[s]
}

// IsKnown reports whether s is one of the seven funnel stages.
func (s Stage) IsKnown() bool {
	_, ok := stageRanks[s]
	return ok
}

// OrDefault returns s, or Inquiry when s is empty.
func (s Stage) OrDefault() Stage {
	if s == "" {
		return StageInquiry
	}
	return s
}

func (s Stage) String() string { return string(s) }
