// Package repository persists stories and reads the CRM records they are
// derived from.
package repository

import (
	"context"
	"errors"
	"fmt"

	"sentra_backend/internal/story/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// Repository provides database operations for stories
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new story repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const storyColumns = `id, contact, stage, story_version, primary_trip, last_built_at,
	last_touch_from, last_touch_reason, created_at, updated_at`

// GetStoryByContact loads the contact's story with its facts and itinerary
// snapshots.
func (r *Repository) GetStoryByContact(ctx context.Context, contact string) (*domain.Story, error) {
	story, err := scanStory(r.pool.QueryRow(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE contact = $1`, contact))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	if err := r.loadChildren(ctx, story); err != nil {
		return nil, err
	}
	return story, nil
}

// CreateStory inserts a new story with its child rows.
func (r *Repository) CreateStory(ctx context.Context, story *domain.Story) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO stories (
			id, contact, stage, story_version, primary_trip, last_built_at,
			last_touch_from, last_touch_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		story.ID, story.Contact, string(story.Stage.OrDefault()), story.StoryVersion, story.PrimaryTrip,
		story.LastBuiltAt, story.LastTouchFrom, story.LastTouchReason, story.CreatedAt, story.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrStoryExists
		}
		return fmt.Errorf("failed to create story: %w", err)
	}

	if err := writeChildren(ctx, tx, story); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SaveStory updates the story row and upserts its facts and itinerary
// snapshots in one transaction.
func (r *Repository) SaveStory(ctx context.Context, story *domain.Story) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, `
		UPDATE stories SET
			stage = $2,
			story_version = $3,
			primary_trip = $4,
			last_built_at = $5,
			last_touch_from = $6,
			last_touch_reason = $7,
			updated_at = $8
		WHERE id = $1`,
		story.ID, string(story.Stage.OrDefault()), story.StoryVersion, story.PrimaryTrip, story.LastBuiltAt,
		story.LastTouchFrom, story.LastTouchReason, story.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update story: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStoryNotFound
	}

	if err := writeChildren(ctx, tx, story); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func writeChildren(ctx context.Context, tx pgx.Tx, story *domain.Story) error {
	for _, f := range story.Facts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO story_facts (story_id, key, value, precedence, source_doc_type, source_doc, last_seen_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (story_id, key) DO UPDATE SET
				value = EXCLUDED.value,
				precedence = EXCLUDED.precedence,
				source_doc_type = EXCLUDED.source_doc_type,
				source_doc = EXCLUDED.source_doc,
				last_seen_at = EXCLUDED.last_seen_at`,
			story.ID, f.Key, f.Value, f.Precedence, f.SourceDocType, f.SourceDoc, f.LastSeenAt, f.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert fact %s: %w", f.Key, err)
		}
	}

	for i, s := range story.Itineraries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO story_itineraries (story_id, itinerary, status, valid_from, valid_to, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (story_id, itinerary) DO UPDATE SET
				status = EXCLUDED.status,
				valid_from = EXCLUDED.valid_from,
				valid_to = EXCLUDED.valid_to`,
			story.ID, s.Itinerary, s.Status, s.ValidFrom, s.ValidTo, i,
		); err != nil {
			return fmt.Errorf("failed to upsert itinerary snapshot %s: %w", s.Itinerary, err)
		}
	}
	return nil
}

func (r *Repository) loadChildren(ctx context.Context, story *domain.Story) error {
	rows, err := r.pool.Query(ctx, `
		SELECT key, value, precedence, source_doc_type, source_doc, last_seen_at, created_at
		FROM story_facts WHERE story_id = $1
		ORDER BY created_at, key`, story.ID)
	if err != nil {
		return fmt.Errorf("failed to list facts: %w", err)
	}
	facts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Fact, error) {
		var f domain.Fact
		err := row.Scan(&f.Key, &f.Value, &f.Precedence, &f.SourceDocType, &f.SourceDoc, &f.LastSeenAt, &f.CreatedAt)
		return f, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan facts: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT itinerary, status, valid_from, valid_to
		FROM story_itineraries WHERE story_id = $1
		ORDER BY position, itinerary`, story.ID)
	if err != nil {
		return fmt.Errorf("failed to list itinerary snapshots: %w", err)
	}
	snapshots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ItinerarySnapshot, error) {
		var s domain.ItinerarySnapshot
		err := row.Scan(&s.Itinerary, &s.Status, &s.ValidFrom, &s.ValidTo)
		return s, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan itinerary snapshots: %w", err)
	}

	story.Facts = facts
	story.Itineraries = snapshots
	return nil
}

func scanStory(row pgx.Row) (*domain.Story, error) {
	var s domain.Story
	var stage string
	if err := row.Scan(
		&s.ID, &s.Contact, &stage, &s.StoryVersion, &s.PrimaryTrip, &s.LastBuiltAt,
		&s.LastTouchFrom, &s.LastTouchReason, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Stage = domain.Stage(stage)
	return &s, nil
}

// ListStories returns stories without child rows, most recently updated
// first.
func (r *Repository) ListStories(ctx context.Context, limit, offset int) ([]domain.Story, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+storyColumns+` FROM stories
		ORDER BY updated_at DESC, contact
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	stories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Story, error) {
		s, err := scanStory(row)
		if err != nil {
			return domain.Story{}, err
		}
		return *s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stories: %w", err)
	}
	return stories, nil
}
