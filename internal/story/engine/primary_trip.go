package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sentra_backend/internal/story/domain"
)

// choosePrimaryTrip picks the trip with the nearest start date from today
// on. Without one it falls back to the most recently created trip.
func (e *Engine) choosePrimaryTrip(ctx context.Context, contact string) (string, error) {
	trips, err := e.records.ListTripsForContact(ctx, contact)
	if err != nil {
		return "", fmt.Errorf("list trips for %s: %w", contact, err)
	}
	return pickPrimaryTrip(trips, e.now()), nil
}

// pickPrimaryTrip expects trips newest first.
func pickPrimaryTrip(trips []domain.TripSummary, now time.Time) string {
	if len(trips) == 0 {
		return ""
	}

	today := civilDate(now)
	future := make([]domain.TripSummary, 0, len(trips))
	for _, t := range trips {
		if t.StartDate != nil && !civilDate(*t.StartDate).Before(today) {
			future = append(future, t)
		}
	}
	if len(future) == 0 {
		return trips[0].Name
	}

	sort.SliceStable(future, func(i, j int) bool {
		return civilDate(*future[i].StartDate).Before(civilDate(*future[j].StartDate))
	})
	return future[0].Name
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *Engine) refreshPrimaryTrip(ctx context.Context, story *domain.Story) error {
	primary, err := e.choosePrimaryTrip(ctx, story.Contact)
	if err != nil {
		return err
	}
	if primary == "" || (story.PrimaryTrip != nil && *story.PrimaryTrip == primary) {
		return nil
	}

	story.PrimaryTrip = &primary
	if err := e.saveStory(ctx, story); err != nil {
		return fmt.Errorf("save primary trip: %w", err)
	}
	return nil
}
