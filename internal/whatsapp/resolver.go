// Package whatsapp resolves the senders of WhatsApp messages to contacts.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sentra_backend/internal/events"
	"sentra_backend/internal/story/repository"
	"sentra_backend/platform/config"
	"sentra_backend/platform/logger"
	"sentra_backend/platform/phone"
)

const autoContactPrefix = "WA-"

// Directory looks up and creates contacts by phone number.
type Directory interface {
	FindContactByPhone(ctx context.Context, phone string) (string, error)
	CreateContact(ctx context.Context, name, fullName, phone string) (string, error)
}

// ContactResolver maps a phone number to a contact, optionally creating one
// for unknown numbers.
type ContactResolver struct {
	dir        Directory
	region     string
	autoCreate bool
	bus        events.Publisher
	log        *logger.Logger
}

// NewContactResolver creates a resolver backed by dir.
func NewContactResolver(dir Directory, cfg config.PhoneConfig, bus events.Publisher, log *logger.Logger) *ContactResolver {
	return &ContactResolver{
		dir:        dir,
		region:     cfg.GetPhoneDefaultRegion(),
		autoCreate: cfg.IsContactAutoCreate(),
		bus:        bus,
		log:        log,
	}
}

// ResolveContact returns the contact for phoneNumber. Numbers that do not
// parse resolve to no contact.
func (r *ContactResolver) ResolveContact(ctx context.Context, phoneNumber string) (string, error) {
	raw := strings.TrimSpace(phoneNumber)
	if raw == "" {
		return "", nil
	}
	normalized := phone.NormalizeE164InRegion(raw, r.region)
	if !phone.IsValid(normalized, r.region) {
		r.log.WithContext(ctx).Debug("ignoring unparseable phone number", "phone", raw)
		return "", nil
	}

	for _, candidate := range candidates(normalized, raw) {
		contact, err := r.dir.FindContactByPhone(ctx, candidate)
		if err == nil {
			return contact, nil
		}
		if !errors.Is(err, repository.ErrContactNotFound) {
			return "", fmt.Errorf("find contact by phone: %w", err)
		}
	}

	if !r.autoCreate {
		return "", nil
	}

	name := autoContactPrefix + strings.TrimPrefix(normalized, "+")
	contact, err := r.dir.CreateContact(ctx, name, normalized, normalized)
	if err != nil {
		return "", fmt.Errorf("create contact for phone: %w", err)
	}

	r.log.WithContext(ctx).Info("contact auto-created from phone", "contact", contact)
	if r.bus != nil {
		r.bus.Publish(ctx, events.ContactAutoCreated{
			BaseEvent: events.NewBaseEvent(),
			Contact:   contact,
			Phone:     normalized,
		})
	}
	return contact, nil
}

func candidates(normalized, raw string) []string {
	if raw == normalized {
		return []string{normalized}
	}
	return []string{normalized, raw}
}
