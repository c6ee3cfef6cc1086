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
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

const reservationColumns = `id, property_id, room_type_id, guest_id, check_in, check_out,
	adults, children, status, payment_status, source, total_amount, currency,
	notes, external_id, external_system, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(
		&r.ID, &r.PropertyID, &r.RoomTypeID, &r.GuestID, &r.CheckIn, &r.CheckOut,
		&r.Adults, &r.Children, &r.Status, &r.PaymentStatus, &r.Source,
		&r.TotalAmount, &r.Currency, &r.Notes, &r.ExternalID, &r.ExternalSystem,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReservation fetches a reservation by local id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return r, nil
}

// GetReservationByExternalID fetches the reservation linked to an external
// booking id, if any.
func (db *DB) GetReservationByExternalID(ctx context.Context, system, externalID string) (*models.Reservation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE external_system = ? AND external_id = ?`, system, externalID)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation by external id %s/%s: %w", system, externalID, err)
	}
	return r, nil
}

// CreateReservation inserts a reservation and returns its assigned id.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO reservations (
			property_id, room_type_id, guest_id, check_in, check_out,
			adults, children, status, payment_status, source, total_amount,
			currency, notes, external_id, external_system, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PropertyID, r.RoomTypeID, r.GuestID, r.CheckIn, r.CheckOut,
		r.Adults, r.Children, r.Status, r.PaymentStatus, r.Source, r.TotalAmount,
		r.Currency, r.Notes, r.ExternalID, r.ExternalSystem, now, now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("%w: external id %s/%s", ErrAlreadySynced, r.ExternalSystem, r.ExternalID)
		}
		return 0, fmt.Errorf("create reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reservation insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return id, nil
}

// UpdateReservation updates the mutable fields of a reservation.
func (db *DB) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		`UPDATE reservations SET
			check_in = ?, check_out = ?, adults = ?, children = ?,
			status = ?, payment_status = ?, source = ?, total_amount = ?,
			currency = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		r.CheckIn, r.CheckOut, r.Adults, r.Children,
		r.Status, r.PaymentStatus, r.Source, r.TotalAmount,
		r.Currency, r.Notes, time.Now().UTC(), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, err)
	}
	return nil
}

// SetReservationExternalID persists the external booking id assigned by a
// channel manager. The conditional WHERE makes the write idempotent: it
// succeeds when the reservation is unsynced or already carries the same id,
// and returns ErrAlreadySynced when a different id is stored (a concurrent
// push won).
func (db *DB) SetReservationExternalID(ctx context.Context, id int64, system, externalID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.db.ExecContext(ctx,
		`UPDATE reservations SET external_id = ?, external_system = ?, updated_at = ?
		 WHERE id = ? AND (external_id = '' OR (external_id = ? AND external_system = ?))`,
		externalID, system, time.Now().UTC(), id, externalID, system,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrAlreadySynced
		}
		return fmt.Errorf("set external id on reservation %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set external id rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAlreadySynced
	}
	return nil
}

// ListActiveReservations returns reservations overlapping the given ISO date
// window for a property, excluding cancelled and checked-out stays.
func (db *DB) ListActiveReservations(ctx context.Context, propertyID, from, to string) ([]*models.Reservation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE property_id = ? AND check_in < ? AND check_out > ?
		   AND status NOT IN ('cancelled', 'no_show', 'checked_out')
		 ORDER BY check_in`, propertyID, to, from)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
