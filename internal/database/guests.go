// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

const guestColumns = `id, first_name, last_name, email, phone, country, created_at, updated_at`

func scanGuest(row interface{ Scan(...any) error }) (*models.Guest, error) {
	var g models.Guest
	err := row.Scan(&g.ID, &g.FirstName, &g.LastName, &g.Email, &g.Phone, &g.Country,
		&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGuest fetches a guest by id.
func (db *DB) GetGuest(ctx context.Context, id int64) (*models.Guest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE id = ?`, id)
	g, err := scanGuest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get guest %d: %w", id, err)
	}
	return g, nil
}

// FindGuestByEmail looks up a guest by email, case-insensitively.
func (db *DB) FindGuestByEmail(ctx context.Context, email string) (*models.Guest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE email = ? COLLATE NOCASE AND email != ''`,
		strings.TrimSpace(email))
	g, err := scanGuest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find guest by email: %w", err)
	}
	return g, nil
}

// CreateGuest inserts a guest and returns its assigned id.
func (db *DB) CreateGuest(ctx context.Context, g *models.Guest) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO guests (first_name, last_name, email, phone, country, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.FirstName, g.LastName, strings.TrimSpace(g.Email), g.Phone, g.Country, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("create guest: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("guest insert id: %w", err)
	}
	g.ID = id
	g.CreatedAt = now
	g.UpdatedAt = now
	return id, nil
}

// FindOrCreateGuest matches an incoming guest by email when one is present,
// otherwise creates a fresh record. Guests without an email are never
// deduplicated; two bookings with no contact details stay two guests.
func (db *DB) FindOrCreateGuest(ctx context.Context, g *models.Guest) (int64, error) {
	if email := strings.TrimSpace(g.Email); email != "" {
		existing, err := db.FindGuestByEmail(ctx, email)
		if err == nil {
			return existing.ID, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return 0, err
		}
	}
	id, err := db.CreateGuest(ctx, g)
	if err != nil && isConstraintViolation(err) {
		// Lost a race on the unique email index; the winner's row serves.
		existing, findErr := db.FindGuestByEmail(ctx, g.Email)
		if findErr == nil {
			return existing.ID, nil
		}
		return 0, err
	}
	return id, err
}
