package exports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoryRow is one story as exported.
type StoryRow struct {
	Contact         string
	Stage           string
	StoryVersion    int
	PrimaryTrip     *string
	LastTouchReason string
	LastBuiltAt     time.Time
	UpdatedAt       time.Time
}

// StageChangeEvent is a story event that moved a story between stages.
type StageChangeEvent struct {
	EventID       uuid.UUID
	Contact       string
	FromStage     string
	ToStage       string
	SourceDocType *string
	SourceRef     *string
	OccurredAt    time.Time
}

// Repository provides data access for export operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListStories returns stories updated in [from, to], optionally restricted to
// one stage, most recently updated first.
func (r *Repository) ListStories(ctx context.Context, stage string, from time.Time, to time.Time, limit int) ([]StoryRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT contact, stage, story_version, primary_trip, last_touch_reason, last_built_at, updated_at
		FROM stories
		WHERE updated_at BETWEEN $1 AND $2
		  AND ($3 = '' OR stage = $3)
		ORDER BY updated_at DESC, contact
		LIMIT $4`, from, to, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories for export: %w", err)
	}

	stories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StoryRow, error) {
		var s StoryRow
		err := row.Scan(&s.Contact, &s.Stage, &s.StoryVersion, &s.PrimaryTrip, &s.LastTouchReason, &s.LastBuiltAt, &s.UpdatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stories for export: %w", err)
	}
	return stories, nil
}

// ListStageChanges returns stage-change events created in [from, to],
// oldest first.
func (r *Repository) ListStageChanges(ctx context.Context, from time.Time, to time.Time, limit int) ([]StageChangeEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contact, diff->'stage'->>'from', diff->'stage'->>'to', source_doctype, source_ref, created_at
		FROM story_events
		WHERE created_at BETWEEN $1 AND $2
		  AND diff ? 'stage'
		ORDER BY created_at ASC, id
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage changes: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StageChangeEvent, error) {
		var e StageChangeEvent
		var fromStage, toStage *string
		if err := row.Scan(&e.EventID, &e.Contact, &fromStage, &toStage, &e.SourceDocType, &e.SourceRef, &e.OccurredAt); err != nil {
			return e, err
		}
		if fromStage != nil {
			e.FromStage = *fromStage
		}
		if toStage != nil {
			e.ToStage = *toStage
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stage changes: %w", err)
	}
	return events, nil
}

// ListExportedEventIDs returns which of the given events were exported
// before.
func (r *Repository) ListExportedEventIDs(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if len(eventIDs) == 0 {
		return map[uuid.UUID]struct{}{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT event_id FROM story_event_exports WHERE event_id = ANY($1)`, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list exported events: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan exported events: %w", err)
	}

	exported := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		exported[id] = struct{}{}
	}
	return exported, nil
}

// RecordExports marks events as exported.
func (r *Repository) RecordExports(ctx context.Context, eventIDs []uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, id := range eventIDs {
		batch.Queue(`
			INSERT INTO story_event_exports (event_id) VALUES ($1)
			ON CONFLICT (event_id) DO NOTHING`, id)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range eventIDs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to record export: %w", err)
		}
	}
	return nil
}
