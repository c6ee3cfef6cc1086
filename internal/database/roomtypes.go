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

const roomTypeColumns = `id, property_id, name, quantity, base_price, currency,
	max_adults, max_children, floor, features, external_unit_ids, created_at, updated_at`

func scanRoomType(row interface{ Scan(...any) error }) (*models.RoomType, error) {
	var rt models.RoomType
	err := row.Scan(
		&rt.ID, &rt.PropertyID, &rt.Name, &rt.Quantity, &rt.BasePrice, &rt.Currency,
		&rt.MaxAdults, &rt.MaxChildren, &rt.Floor, &rt.Features, &rt.ExternalUnitIDs,
		&rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// GetRoomType fetches a room type by id.
func (db *DB) GetRoomType(ctx context.Context, id int64) (*models.RoomType, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+roomTypeColumns+` FROM room_types WHERE id = ?`, id)
	rt, err := scanRoomType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room type %d: %w", id, err)
	}
	return rt, nil
}

// FindRoomTypeByName fetches a property's room type by its unique name.
func (db *DB) FindRoomTypeByName(ctx context.Context, propertyID, name string) (*models.RoomType, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+roomTypeColumns+` FROM room_types WHERE property_id = ? AND name = ?`,
		propertyID, name)
	rt, err := scanRoomType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room type %q: %w", name, err)
	}
	return rt, nil
}

// ListRoomTypes returns all room types for a property.
func (db *DB) ListRoomTypes(ctx context.Context, propertyID string) ([]*models.RoomType, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.db.QueryContext(ctx,
		`SELECT `+roomTypeColumns+` FROM room_types WHERE property_id = ? ORDER BY name`,
		propertyID)
	if err != nil {
		return nil, fmt.Errorf("list room types: %w", err)
	}
	defer rows.Close()

	var out []*models.RoomType
	for rows.Next() {
		rt, err := scanRoomType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room type: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// CreateRoomType inserts a room type and returns its assigned id.
func (db *DB) CreateRoomType(ctx context.Context, rt *models.RoomType) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO room_types (
			property_id, name, quantity, base_price, currency, max_adults,
			max_children, floor, features, external_unit_ids, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.PropertyID, rt.Name, rt.Quantity, rt.BasePrice, rt.Currency, rt.MaxAdults,
		rt.MaxChildren, rt.Floor, rt.Features, rt.ExternalUnitIDs, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("create room type: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("room type insert id: %w", err)
	}
	rt.ID = id
	rt.CreatedAt = now
	rt.UpdatedAt = now
	return id, nil
}

// UpdateRoomTypeInventory updates the aggregated fields maintained by room
// sync: unit quantity, price, and the external per-unit id list.
func (db *DB) UpdateRoomTypeInventory(ctx context.Context, id int64, quantity int, basePrice float64, externalUnitIDs string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		`UPDATE room_types SET quantity = ?, base_price = ?, external_unit_ids = ?, updated_at = ?
		 WHERE id = ?`,
		quantity, basePrice, externalUnitIDs, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update room type inventory %d: %w", id, err)
	}
	return nil
}
