// Package engine derives a contact's sales stage from trip, itinerary and
// communication changes. Each contact has one story; stages only move
// forward and every stage change leaves one immutable event behind.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"sentra_backend/internal/events"
	"sentra_backend/internal/story/domain"
	"sentra_backend/internal/story/repository"
	"sentra_backend/internal/story/rules"
	"sentra_backend/platform/apperr"
	"sentra_backend/platform/lock"
	"sentra_backend/platform/logger"

	"github.com/google/uuid"
)

const lockKeyPrefix = "story:"

// FactInput describes one fact write.
type FactInput struct {
	Key           string
	Value         any
	SourceDocType string
	SourceName    string
	// Precedence defaults to business_object.
	Precedence string
}

// EventInput describes one story event.
type EventInput struct {
	EventType     string
	SourceDocType string
	SourceRef     string
	Diff          map[string]any
	// Actor defaults to system.
	Actor string
}

// StageChange carries the signals and provenance of a stage recomputation.
type StageChange struct {
	Signals       rules.Signals
	Reason        string
	SourceDocType string
	SourceRef     string
	// EventType defaults to business_object_updated.
	EventType string
}

// Engine maintains stories. The exported entry points UpdateFromBusiness,
// UpdateFromTrip, UpdateFromItinerary, UpdateFromComm and MarkProposalSent
// serialize work per contact. The primitives EnsureStory, UpsertFact,
// AppendEvent and ChooseAndUpdateStage expect the caller to do so.
type Engine struct {
	store    StoryStore
	records  RecordReader
	locker   lock.Locker
	bus      events.Publisher
	resolver ContactResolver
	log      *logger.Logger
	lockWait time.Duration
	now      func() time.Time
}

// New creates a story engine. A nil locker falls back to an in-process
// keyed mutex.
func New(store StoryStore, records RecordReader, locker lock.Locker, bus events.Publisher, log *logger.Logger) *Engine {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Engine{
		store:   store,
		records: records,
		locker:  locker,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// SetContactResolver sets the phone-based contact lookup used for
// communications without an explicit contact.
func (e *Engine) SetContactResolver(resolver ContactResolver) {
	e.resolver = resolver
}

// SetLockWait bounds how long an entry point waits for the contact lock.
// Zero waits until the caller's context is done.
func (e *Engine) SetLockWait(d time.Duration) {
	e.lockWait = d
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) withContactLock(ctx context.Context, contact string, fn func(ctx context.Context) error) error {
	lockCtx := ctx
	if e.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, e.lockWait)
		defer cancel()
	}

	unlock, err := e.locker.Lock(lockCtx, lockKeyPrefix+contact)
	if errors.Is(err, lock.ErrNotAcquired) {
		return apperr.Busy("story is being updated for "+contact, err)
	}
	if err != nil {
		return fmt.Errorf("lock story for %s: %w", contact, err)
	}
	defer unlock()

	return fn(logger.ContextWithContact(ctx, contact))
}

// EnsureStory returns the contact's story, creating it at Inquiry when
// missing. A story created concurrently by another writer is re-read once.
func (e *Engine) EnsureStory(ctx context.Context, contact string) (*domain.Story, error) {
	story, err := e.store.GetStoryByContact(ctx, contact)
	if err == nil {
		return story, nil
	}
	if !errors.Is(err, repository.ErrStoryNotFound) {
		return nil, fmt.Errorf("load story for %s: %w", contact, err)
	}

	now := e.now()
	story = &domain.Story{
		ID:              uuid.New(),
		Contact:         contact,
		Stage:           domain.StageInquiry,
		StoryVersion:    1,
		LastBuiltAt:     now,
		LastTouchFrom:   domain.TouchFromSystem,
		LastTouchReason: domain.ReasonEnsureStory,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.CreateStory(ctx, story); err != nil {
		if !errors.Is(err, repository.ErrStoryExists) {
			return nil, fmt.Errorf("create story for %s: %w", contact, err)
		}
		e.log.WithContext(ctx).Info("story created concurrently, reloading", "contact", contact)
		existing, err := e.store.GetStoryByContact(ctx, contact)
		if err != nil {
			return nil, fmt.Errorf("reload story for %s: %w", contact, err)
		}
		return existing, nil
	}

	e.log.WithContext(ctx).Debug("story created", "contact", contact, "story_id", story.ID)
	return story, nil
}

// UpsertFact writes one fact, replacing the row with the same key, and
// persists the story.
func (e *Engine) UpsertFact(ctx context.Context, story *domain.Story, in FactInput) error {
	value, err := serializeValue(in.Value)
	if err != nil {
		return fmt.Errorf("serialize fact %s: %w", in.Key, err)
	}
	precedence := in.Precedence
	if precedence == "" {
		precedence = domain.PrecedenceBusinessObject
	}
	now := e.now()

	if existing, ok := story.FindFact(in.Key); ok {
		existing.Value = value
		existing.Precedence = precedence
		if in.SourceDocType != "" && in.SourceName != "" {
			existing.SourceDocType = stringPtr(in.SourceDocType)
			existing.SourceDoc = stringPtr(in.SourceName)
		}
		existing.LastSeenAt = &now
	} else {
		story.Facts = append(story.Facts, domain.Fact{
			Key:           in.Key,
			Value:         value,
			Precedence:    precedence,
			SourceDocType: optionalString(in.SourceDocType),
			SourceDoc:     optionalString(in.SourceName),
			LastSeenAt:    &now,
			CreatedAt:     now,
		})
	}

	if err := e.saveStory(ctx, story); err != nil {
		return fmt.Errorf("save fact %s: %w", in.Key, err)
	}
	return nil
}

// AppendEvent records one immutable story event.
func (e *Engine) AppendEvent(ctx context.Context, story *domain.Story, in EventInput) (domain.Event, error) {
	actor := in.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}
	diff := in.Diff
	if diff == nil {
		diff = map[string]any{}
	}

	event := domain.Event{
		ID:            uuid.New(),
		Contact:       story.Contact,
		EventType:     in.EventType,
		SourceDocType: optionalString(in.SourceDocType),
		SourceRef:     optionalString(in.SourceRef),
		Diff:          diff,
		Actor:         actor,
		CreatedAt:     e.now(),
	}
	if err := e.store.InsertEvent(ctx, event); err != nil {
		return domain.Event{}, fmt.Errorf("insert story event: %w", err)
	}
	return event, nil
}

// ChooseAndUpdateStage recomputes the story's stage. When it changes, the
// version is bumped, the story is persisted and one event with the stage
// diff is appended. It reports whether the stage changed.
func (e *Engine) ChooseAndUpdateStage(ctx context.Context, story *domain.Story, change StageChange) (bool, error) {
	from := story.Stage.OrDefault()
	to := rules.ChooseStage(from, change.Signals)
	if to == from {
		return false, nil
	}

	now := e.now()
	story.Stage = to
	story.StoryVersion++
	story.LastBuiltAt = now
	story.LastTouchFrom = domain.TouchFromSystem
	story.LastTouchReason = change.Reason
	if err := e.saveStory(ctx, story); err != nil {
		return false, fmt.Errorf("save stage %s: %w", to, err)
	}

	eventType := change.EventType
	if eventType == "" {
		eventType = domain.EventTypeBusinessObjectUpdated
	}
	if _, err := e.AppendEvent(ctx, story, EventInput{
		EventType:     eventType,
		SourceDocType: change.SourceDocType,
		SourceRef:     change.SourceRef,
		Diff:          domain.StageDiff(from, to),
	}); err != nil {
		return true, err
	}

	stageTransitions.WithLabelValues(string(from), string(to), change.Reason).Inc()
	e.log.WithContext(ctx).StoryTransition(story.Contact, string(from), string(to), change.Reason, story.StoryVersion)

	if e.bus != nil {
		e.bus.Publish(ctx, events.StoryStageChanged{
			BaseEvent:     events.NewBaseEventAt(now),
			StoryID:       story.ID,
			Contact:       story.Contact,
			OldStage:      string(from),
			NewStage:      string(to),
			StoryVersion:  story.StoryVersion,
			Reason:        change.Reason,
			SourceDocType: change.SourceDocType,
			SourceRef:     change.SourceRef,
		})
	}
	return true, nil
}

func (e *Engine) saveStory(ctx context.Context, story *domain.Story) error {
	story.UpdatedAt = e.now()
	return e.store.SaveStory(ctx, story)
}

func serializeValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case *time.Time:
		if v == nil {
			return "", nil
		}
		return v.Format(time.RFC3339), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		raw, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return fmt.Sprint(value), nil
	}
}

func stringPtr(s string) *string { return &s }

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
