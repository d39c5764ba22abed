package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageRankOrder(t *testing.T) {
	for i, stage := range Stages {
		assert.Equal(t, i, stage.Rank(), stage)
	}
}

func TestUnknownStageRanksAsInquiry(t *testing.T) {
	assert.Equal(t, StageInquiry.Rank(), Stage("").Rank())
	assert.False(t, Stage("Archived").IsKnown())
	assert.Equal(t, StageInquiry, Stage("").OrDefault())
}

func TestStoryLookups(t *testing.T) {
	story := &Story{
		Facts:       []Fact{{Key: "proposal.itinerary", Value: "ITIN-01"}},
		Itineraries: []ItinerarySnapshot{{Itinerary: "ITIN-01", Status: "Draft"}, {Itinerary: "ITIN-02"}},
	}

	f, ok := story.FindFact("proposal.itinerary")
	require.True(t, ok)
	assert.Equal(t, "ITIN-01", f.Value)

	_, ok = story.FindFact("proposal.sent_at")
	assert.False(t, ok)

	_, ok = story.FindItinerary("ITIN-02")
	assert.True(t, ok)

	assert.Equal(t, []string{"Draft"}, story.ItineraryStatuses())
}
