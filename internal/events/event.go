// Package events defines the story domain events and the typed subscription
// helpers used to consume them. The bus itself lives in platform/events.
package events

import (
	"context"

	"sentra_backend/platform/events"
	"sentra_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// NewInMemoryBus creates the process-local bus the story module publishes on.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// ContactEvent is a story event scoped to a single contact.
type ContactEvent interface {
	Event
	ContactName() string
}

// Subscribe registers fn for every published event of type T. The handler
// context carries the event's contact, so logger.WithContext picks it up.
func Subscribe[T ContactEvent](bus Bus, fn func(ctx context.Context, event T) error) {
	var zero T
	bus.Subscribe(zero.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(T)
		if !ok {
			return nil
		}
		return fn(logger.ContextWithContact(ctx, e.ContactName()), e)
	}))
}

// StoryStageChanged is published after a story moved to a new stage and the
// change was persisted.
type StoryStageChanged struct {
	BaseEvent
	StoryID       uuid.UUID `json:"storyId"`
	Contact       string    `json:"contact"`
	OldStage      string    `json:"oldStage"`
	NewStage      string    `json:"newStage"`
	StoryVersion  int       `json:"storyVersion"`
	Reason        string    `json:"reason"`
	SourceDocType string    `json:"sourceDocType,omitempty"`
	SourceRef     string    `json:"sourceRef,omitempty"`
}

func (e StoryStageChanged) EventName() string   { return "story.stage.changed" }
func (e StoryStageChanged) ContactName() string { return e.Contact }

// ContactAutoCreated is published when an inbound message from an unknown
// phone number created a new contact.
type ContactAutoCreated struct {
	BaseEvent
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
}

func (e ContactAutoCreated) EventName() string   { return "story.contact.auto_created" }
func (e ContactAutoCreated) ContactName() string { return e.Contact }
