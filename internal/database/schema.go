// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package database

import (
	"context"
	"fmt"
)

// ensureSchema creates all tables and indexes. Every statement is idempotent
// so this is safe to run on every process start.
func (db *DB) ensureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS guests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_guests_email
			ON guests(email) WHERE email != ''`,

		`CREATE TABLE IF NOT EXISTS room_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			base_price REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'EUR',
			max_adults INTEGER NOT NULL DEFAULT 2,
			max_children INTEGER NOT NULL DEFAULT 0,
			floor INTEGER NOT NULL DEFAULT 0,
			features TEXT NOT NULL DEFAULT '',
			external_unit_ids TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(property_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_type_id INTEGER NOT NULL REFERENCES room_types(id),
			number TEXT NOT NULL,
			floor INTEGER NOT NULL DEFAULT 0,
			out_of_order INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(room_type_id, number)
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL,
			room_type_id INTEGER NOT NULL REFERENCES room_types(id),
			guest_id INTEGER NOT NULL REFERENCES guests(id),
			check_in TEXT NOT NULL,
			check_out TEXT NOT NULL,
			adults INTEGER NOT NULL DEFAULT 1,
			children INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			payment_status TEXT NOT NULL DEFAULT 'unpaid',
			source TEXT NOT NULL DEFAULT 'direct',
			total_amount REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'EUR',
			notes TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			external_system TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// One external booking per reservation and vice versa. This is the
		// datastore-level guard that makes concurrent pushes of the same
		// reservation converge on a single external id.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_external
			ON reservations(external_system, external_id) WHERE external_id != ''`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_dates
			ON reservations(property_id, check_in, check_out)`,

		`CREATE TABLE IF NOT EXISTS entity_mappings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			system TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			local_id INTEGER NOT NULL,
			external_id TEXT NOT NULL,
			direction TEXT NOT NULL DEFAULT 'bidirectional',
			origin TEXT NOT NULL DEFAULT 'sync',
			conflict INTEGER NOT NULL DEFAULT 0,
			conflict_detail TEXT NOT NULL DEFAULT '',
			last_synced_at TIMESTAMP,
			deleted_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// Uniqueness holds only among live mappings; unmapping soft-deletes
		// the row and frees both sides for a new pairing. Room types are
		// exempt from local-side uniqueness: grouping folds several external
		// units into one local type, so the type legitimately maps to every
		// unit id in its group.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_local
			ON entity_mappings(system, entity_type, local_id)
			WHERE deleted_at IS NULL AND entity_type != 'room_type'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_external
			ON entity_mappings(system, entity_type, external_id) WHERE deleted_at IS NULL`,

		`CREATE TABLE IF NOT EXISTS mapping_suggestions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			system TEXT NOT NULL,
			local_id INTEGER NOT NULL,
			external_id TEXT NOT NULL,
			external_name TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(system, local_id, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			system TEXT NOT NULL,
			run_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			items_processed INTEGER NOT NULL DEFAULT 0,
			items_created INTEGER NOT NULL DEFAULT 0,
			items_updated INTEGER NOT NULL DEFAULT 0,
			items_failed INTEGER NOT NULL DEFAULT 0,
			errors TEXT NOT NULL DEFAULT '[]'
		)`,
		// At most one running sync per system regardless of run type.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_runs_active
			ON sync_runs(system) WHERE status = 'running'`,

		`CREATE TABLE IF NOT EXISTS sync_settings (
			property_id TEXT NOT NULL,
			system TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (property_id, system)
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
