package rules

import (
	"fmt"
	"testing"
	"time"

	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/normalize"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestTripReadyForProposalTruthTable(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	for mask := 0; mask < 8; mask++ {
		hasDest := mask&1 != 0
		hasDates := mask&2 != 0
		hasPax := mask&4 != 0

		intent := normalize.Intent{}
		if hasDest {
			intent.Destinations = []string{"Paris"}
		}
		if hasDates {
			intent.Dates = normalize.Dates{Start: &start, End: &end}
		}
		if hasPax {
			intent.Pax = 2
		}

		want := hasDest && hasDates && hasPax
		t.Run(fmt.Sprintf("dest=%v,dates=%v,pax=%v", hasDest, hasDates, hasPax), func(t *testing.T) {
			assert.Equal(t, want, TripReadyForProposal(intent))
		})
	}
}

func TestTripReadyForProposalDateVariants(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	base := normalize.Intent{Destinations: []string{"Paris"}, Pax: 1}

	tests := []struct {
		name  string
		dates normalize.Dates
		want  bool
	}{
		{name: "start only", dates: normalize.Dates{Start: &start}, want: false},
		{name: "flexible", dates: normalize.Dates{Flex: strPtr("+/- 3 days")}, want: true},
		{name: "exact dates without window", dates: normalize.Dates{Flex: strPtr(domain.ExactDates)}, want: false},
		{name: "empty flex", dates: normalize.Dates{Flex: strPtr("")}, want: false},
		{name: "exact dates with window", dates: normalize.Dates{Start: &start, End: &start, Flex: strPtr(domain.ExactDates)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := base
			intent.Dates = tt.dates
			assert.Equal(t, tt.want, TripReadyForProposal(intent))
		})
	}
}

func TestProposalSent(t *testing.T) {
	tests := []struct {
		name  string
		facts map[string]any
		want  bool
	}{
		{name: "nil facts", facts: nil, want: false},
		{name: "no proposal", facts: map[string]any{"trip": "x"}, want: false},
		{name: "proposal is a leaf", facts: map[string]any{"proposal": "ITIN-01"}, want: false},
		{name: "empty sent_at", facts: map[string]any{"proposal": map[string]any{"sent_at": ""}}, want: false},
		{name: "itinerary only", facts: map[string]any{"proposal": map[string]any{"itinerary": "ITIN-01"}}, want: false},
		{name: "sent", facts: map[string]any{"proposal": map[string]any{"sent_at": "2025-06-01T10:00:00Z"}}, want: true},
		{name: "zero number", facts: map[string]any{"proposal": map[string]any{"sent_at": float64(0)}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProposalSent(tt.facts))
		})
	}
}

func TestChooseStagePriority(t *testing.T) {
	tests := []struct {
		name    string
		signals Signals
		want    domain.Stage
	}{
		{name: "nothing", signals: Signals{}, want: domain.StageInquiry},
		{name: "contact", signals: Signals{HasContact: true}, want: domain.StageDiscovery},
		{name: "itinerary", signals: Signals{HasContact: true, HasItinerary: true}, want: domain.StageProposal},
		{name: "trip ready", signals: Signals{HasContact: true, TripReady: true}, want: domain.StageProposal},
		{name: "proposal sent", signals: Signals{HasContact: true, HasItinerary: true, ProposalSent: true}, want: domain.StageNegotiation},
		{name: "statuses ignored", signals: Signals{HasContact: true, ItineraryStatuses: []string{"Cancelled"}}, want: domain.StageDiscovery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseStage(domain.StageInquiry, tt.signals))
		})
	}
}

func TestChooseStageNeverRegresses(t *testing.T) {
	all := []Signals{
		{},
		{HasContact: true},
		{HasContact: true, TripReady: true},
		{HasContact: true, HasItinerary: true},
		{HasContact: true, ProposalSent: true},
	}

	for _, current := range domain.Stages {
		for _, s := range all {
			got := ChooseStage(current, s)
			assert.GreaterOrEqual(t, got.Rank(), current.Rank(), "stage regressed from %s to %s with %+v", current, got, s)
		}
	}

	assert.Equal(t, domain.StageBooking, ChooseStage(domain.StageBooking, Signals{HasContact: true, ProposalSent: true}))
	assert.Equal(t, domain.StageInquiry, ChooseStage("", Signals{}))
}

func TestChooseStageSequenceIsMonotonic(t *testing.T) {
	sequence := []Signals{
		{HasContact: true, ProposalSent: true},
		{HasContact: true},
		{HasContact: true, TripReady: true},
		{},
	}

	stage := domain.StageInquiry
	for _, s := range sequence {
		next := ChooseStage(stage, s)
		assert.GreaterOrEqual(t, next.Rank(), stage.Rank(), "stage regressed from %s to %s", stage, next)
		stage = next
	}
	assert.Equal(t, domain.StageNegotiation, stage)
}
