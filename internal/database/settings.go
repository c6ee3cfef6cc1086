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
)

// IsSyncEnabled reports whether outbound sync is switched on for a property
// and system pair. Absent rows mean disabled; sync never runs by accident.
func (db *DB) IsSyncEnabled(ctx context.Context, propertyID, system string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var enabled bool
	err := db.db.QueryRowContext(ctx,
		`SELECT enabled FROM sync_settings WHERE property_id = ? AND system = ?`,
		propertyID, system).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sync enabled %s/%s: %w", propertyID, system, err)
	}
	return enabled, nil
}

// SetSyncEnabled switches sync on or off for a property and system pair.
func (db *DB) SetSyncEnabled(ctx context.Context, propertyID, system string, enabled bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO sync_settings (property_id, system, enabled, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(property_id, system)
		 DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		propertyID, system, enabled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set sync enabled %s/%s: %w", propertyID, system, err)
	}
	return nil
}
