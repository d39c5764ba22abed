// Package rules decides a story's stage from normalized signals. Nothing
// here performs I/O.
package rules

import (
	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/normalize"
)

// Signals are the inputs to ChooseStage.
type Signals struct {
	HasContact   bool
	HasItinerary bool
	// ItineraryStatuses is carried through for per-status rules. Only the
	// presence of itineraries is evaluated today.
	ItineraryStatuses []string
	TripReady         bool
	ProposalSent      bool
}

// TripReadyForProposal reports whether a trip has destinations, a travel
// window and travellers.
func TripReadyForProposal(intent normalize.Intent) bool {
	hasDestination := len(intent.Destinations) > 0

	dates := intent.Dates
	hasDates := (dates.Start != nil && dates.End != nil) ||
		(dates.Flex != nil && *dates.Flex != "" && *dates.Flex != domain.ExactDates)

	return hasDestination && hasDates && intent.Pax > 0
}

// ProposalSent reports whether facts record a truthy proposal.sent_at.
func ProposalSent(facts map[string]any) bool {
	proposal, ok := facts["proposal"].(map[string]any)
	if !ok {
		return false
	}
	return truthy(proposal["sent_at"])
}

// ChooseStage returns the stage a story should be in. The first matching
// rule picks a target, and a target ranked below current is ignored.
func ChooseStage(current domain.Stage, s Signals) domain.Stage {
	current = current.OrDefault()

	var target domain.Stage
	switch {
	case s.ProposalSent:
		target = domain.StageNegotiation
	case s.HasItinerary || s.TripReady:
		target = domain.StageProposal
	case s.HasContact:
		target = domain.StageDiscovery
	default:
		target = domain.StageInquiry
	}

	if target.Rank() < current.Rank() {
		return current
	}
	return target
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}
