package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"sentra_backend/internal/story/domain"

	"github.com/jackc/pgx/v5"
)

// InsertEvent appends one story event.
func (r *Repository) InsertEvent(ctx context.Context, event domain.Event) error {
	diff := event.Diff
	if diff == nil {
		diff = map[string]any{}
	}
	raw, err := json.Marshal(diff)
	if err != nil {
		return fmt.Errorf("failed to encode event diff: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO story_events (id, contact, event_type, source_doctype, source_ref, diff, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Contact, event.EventType, event.SourceDocType, event.SourceRef, raw, event.Actor, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert story event: %w", err)
	}
	return nil
}

// ListEvents returns the contact's story events, newest first.
func (r *Repository) ListEvents(ctx context.Context, contact string, limit int) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contact, event_type, source_doctype, source_ref, diff, actor, created_at
		FROM story_events WHERE contact = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, contact, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list story events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Event, error) {
		var e domain.Event
		var raw []byte
		if err := row.Scan(&e.ID, &e.Contact, &e.EventType, &e.SourceDocType, &e.SourceRef, &raw, &e.Actor, &e.CreatedAt); err != nil {
			return e, err
		}
		e.Diff = map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Diff); err != nil {
				return e, fmt.Errorf("decode diff of event %s: %w", e.ID, err)
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan story events: %w", err)
	}
	return events, nil
}
