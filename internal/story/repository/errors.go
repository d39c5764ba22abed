package repository

import "errors"

var (
	// ErrStoryNotFound is returned when no story exists for a contact.
	ErrStoryNotFound = errors.New("story not found")
	// ErrStoryExists is returned when a story for the contact was created
	// by another writer first.
	ErrStoryExists = errors.New("story already exists")
	// ErrTripNotFound is returned when a trip lookup finds nothing.
	ErrTripNotFound = errors.New("trip not found")
	// ErrContactNotFound is returned when a contact lookup finds nothing.
	ErrContactNotFound = errors.New("contact not found")
)
