package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// FindContactByPhone returns the name of the contact whose mobile number is
// phone, or ErrContactNotFound.
func (r *Repository) FindContactByPhone(ctx context.Context, phone string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM contacts WHERE mobile_no = $1`, phone).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrContactNotFound
		}
		return "", fmt.Errorf("failed to find contact by phone: %w", err)
	}
	return name, nil
}

// CreateContact inserts a contact for phone. When another writer created a
// contact with the same number first, that contact's name is returned.
func (r *Repository) CreateContact(ctx context.Context, name, fullName, phone string) (string, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contacts (name, full_name, mobile_no) VALUES ($1, $2, $3)`,
		name, fullName, phone)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return r.FindContactByPhone(ctx, phone)
		}
		return "", fmt.Errorf("failed to create contact: %w", err)
	}
	return name, nil
}
