// Package normalize turns trips and fact rows into the plain structures
// the stage rules read.
package normalize

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"sentra_backend/internal/story/domain"
)

// Dates holds a trip's travel window as entered.
type Dates struct {
	Start *time.Time
	End   *time.Time
	Flex  *string
}

// Intent is the normalized view of what a trip asks for.
type Intent struct {
	Destinations []string
	Dates        Dates
	Pax          int
}

// IntentFromTrip extracts destinations, dates and pax from trip. Blank
// destination rows are skipped. Pax falls back to the number of passenger
// rows when the explicit count is missing or zero.
func IntentFromTrip(trip *domain.Trip) Intent {
	if trip == nil {
		return Intent{}
	}

	destinations := make([]string, 0, len(trip.Destinations))
	for _, row := range trip.Destinations {
		if strings.TrimSpace(row.Destination) != "" {
			destinations = append(destinations, row.Destination)
		}
	}

	pax := 0
	if trip.Pax != nil {
		pax = *trip.Pax
	}
	if pax == 0 {
		pax = len(trip.PassengerDetails)
	}

	return Intent{
		Destinations: destinations,
		Dates: Dates{
			Start: trip.StartDate,
			End:   trip.EndDate,
			Flex:  trip.FlexibleDays,
		},
		Pax: pax,
	}
}

// FactsToMap folds fact rows into a nested map keyed by the dotted path
// segments. Rows are applied oldest first so the latest write of a key
// wins. A later row replaces whatever sits at its path, and a non-map
// value in the way of a deeper path is replaced by a fresh map.
func FactsToMap(facts []domain.Fact) map[string]any {
	rows := make([]domain.Fact, len(facts))
	copy(rows, facts)
	sort.SliceStable(rows, func(i, j int) bool {
		return seenAt(rows[i]).Before(seenAt(rows[j]))
	})

	out := make(map[string]any)
	for _, row := range rows {
		parts := splitKey(row.Key)
		if len(parts) == 0 {
			continue
		}

		value := decodeValue(row.Value)
		cursor := out
		for i, part := range parts {
			if i == len(parts)-1 {
				cursor[part] = value
				break
			}
			next, ok := cursor[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cursor[part] = next
			}
			cursor = next
		}
	}
	return out
}

func seenAt(f domain.Fact) time.Time {
	if f.LastSeenAt != nil {
		return *f.LastSeenAt
	}
	return f.CreatedAt
}

func splitKey(key string) []string {
	raw := strings.Split(key, ".")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func decodeValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return raw
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return raw
	}
	return decoded
}
