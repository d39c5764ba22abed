package repository

import (
	"context"
	"errors"
	"fmt"

	"sentra_backend/internal/story/domain"

	"github.com/jackc/pgx/v5"
)

// GetTrip loads a trip with its destination and passenger rows.
func (r *Repository) GetTrip(ctx context.Context, name string) (*domain.Trip, error) {
	var t domain.Trip
	var customer *string
	err := r.pool.QueryRow(ctx, `
		SELECT name, customer, start_date, end_date, flexible_days, pax, creation
		FROM trips WHERE name = $1`, name).Scan(
		&t.Name, &customer, &t.StartDate, &t.EndDate, &t.FlexibleDays, &t.Pax, &t.Creation,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if customer != nil {
		t.Customer = *customer
	}

	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(destination, '') FROM trip_destinations WHERE trip = $1 ORDER BY idx`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip destinations: %w", err)
	}
	t.Destinations, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TripDestination, error) {
		var d domain.TripDestination
		err := row.Scan(&d.Destination)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan trip destinations: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT COALESCE(full_name, '') FROM trip_passengers WHERE trip = $1 ORDER BY idx`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip passengers: %w", err)
	}
	t.PassengerDetails, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Passenger, error) {
		var p domain.Passenger
		err := row.Scan(&p.FullName)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan trip passengers: %w", err)
	}

	return &t, nil
}

// ListTripsForContact returns the contact's trips, newest first.
func (r *Repository) ListTripsForContact(ctx context.Context, contact string) ([]domain.TripSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, start_date, creation FROM trips
		WHERE customer = $1
		ORDER BY creation DESC`, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	trips, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TripSummary, error) {
		var t domain.TripSummary
		err := row.Scan(&t.Name, &t.StartDate, &t.Creation)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan trips: %w", err)
	}
	return trips, nil
}

// ListItinerariesForTrip returns the trip's itineraries, oldest first.
func (r *Repository) ListItinerariesForTrip(ctx context.Context, trip string) ([]domain.Itinerary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, COALESCE(trip, ''), status, valid_from, valid_to, creation
		FROM itineraries WHERE trip = $1
		ORDER BY creation ASC`, trip)
	if err != nil {
		return nil, fmt.Errorf("failed to list itineraries: %w", err)
	}
	return collectItineraries(rows)
}

// ListTripNames returns trip names in creation order, after the given name
// cursor. An empty cursor starts from the beginning.
func (r *Repository) ListTripNames(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name FROM trips WHERE name > $1 ORDER BY name LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan trip names: %w", err)
	}
	return names, nil
}

// ListItinerariesAfter pages through all itineraries by name.
func (r *Repository) ListItinerariesAfter(ctx context.Context, after string, limit int) ([]domain.Itinerary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, COALESCE(trip, ''), status, valid_from, valid_to, creation
		FROM itineraries WHERE name > $1
		ORDER BY name LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list itineraries: %w", err)
	}
	return collectItineraries(rows)
}

func collectItineraries(rows pgx.Rows) ([]domain.Itinerary, error) {
	itineraries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Itinerary, error) {
		var i domain.Itinerary
		err := row.Scan(&i.Name, &i.Trip, &i.Status, &i.ValidFrom, &i.ValidTo, &i.Creation)
		return i, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan itineraries: %w", err)
	}
	return itineraries, nil
}

// UpsertTrip mirrors a trip notification into the trips tables. Child rows
// are replaced.
func (r *Repository) UpsertTrip(ctx context.Context, trip *domain.Trip) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var creation any
	if !trip.Creation.IsZero() {
		creation = trip.Creation
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO trips (name, customer, start_date, end_date, flexible_days, pax, creation, modified)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, COALESCE($7, now()), now())
		ON CONFLICT (name) DO UPDATE SET
			customer = EXCLUDED.customer,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			flexible_days = EXCLUDED.flexible_days,
			pax = EXCLUDED.pax,
			modified = now()`,
		trip.Name, trip.Customer, trip.StartDate, trip.EndDate, trip.FlexibleDays, trip.Pax, creation,
	); err != nil {
		return fmt.Errorf("failed to upsert trip: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM trip_destinations WHERE trip = $1`, trip.Name); err != nil {
		return fmt.Errorf("failed to clear trip destinations: %w", err)
	}
	for i, d := range trip.Destinations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO trip_destinations (trip, idx, destination) VALUES ($1, $2, $3)`,
			trip.Name, i, d.Destination); err != nil {
			return fmt.Errorf("failed to insert trip destination: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM trip_passengers WHERE trip = $1`, trip.Name); err != nil {
		return fmt.Errorf("failed to clear trip passengers: %w", err)
	}
	for i, p := range trip.PassengerDetails {
		if _, err := tx.Exec(ctx, `
			INSERT INTO trip_passengers (trip, idx, full_name) VALUES ($1, $2, $3)`,
			trip.Name, i, p.FullName); err != nil {
			return fmt.Errorf("failed to insert trip passenger: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UpsertItinerary mirrors an itinerary notification into the itineraries
// table.
func (r *Repository) UpsertItinerary(ctx context.Context, itinerary *domain.Itinerary) error {
	var creation any
	if !itinerary.Creation.IsZero() {
		creation = itinerary.Creation
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO itineraries (name, trip, status, valid_from, valid_to, creation, modified)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, COALESCE($6, now()), now())
		ON CONFLICT (name) DO UPDATE SET
			trip = EXCLUDED.trip,
			status = EXCLUDED.status,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			modified = now()`,
		itinerary.Name, itinerary.Trip, itinerary.Status, itinerary.ValidFrom, itinerary.ValidTo, creation,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert itinerary: %w", err)
	}
	return nil
}

// ListStalePrimaryTrips finds stories whose primary trip already started
// while the contact has an upcoming trip. It returns the nearest upcoming
// trip of each such contact.
func (r *Repository) ListStalePrimaryTrips(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT upcoming.name
		FROM stories s
		JOIN trips p ON p.name = s.primary_trip
		JOIN LATERAL (
			SELECT t.name FROM trips t
			WHERE t.customer = s.contact AND t.start_date >= CURRENT_DATE
			ORDER BY t.start_date ASC, t.creation DESC
			LIMIT 1
		) upcoming ON true
		WHERE p.start_date < CURRENT_DATE
		ORDER BY s.updated_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale primary trips: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale primary trips: %w", err)
	}
	return names, nil
}
