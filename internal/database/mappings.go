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

const mappingColumns = `id, system, entity_type, local_id, external_id, direction,
	origin, conflict, conflict_detail, last_synced_at, deleted_at, created_at, updated_at`

func scanMapping(row interface{ Scan(...any) error }) (*models.EntityMapping, error) {
	var m models.EntityMapping
	err := row.Scan(
		&m.ID, &m.System, &m.EntityType, &m.LocalID, &m.ExternalID, &m.Direction,
		&m.Origin, &m.Conflict, &m.ConflictDetail, &m.LastSyncedAt, &m.DeletedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMapping returns the live mapping for a local entity in one system.
// Room types can carry one mapping per grouped external unit; the oldest
// row (the group's primary unit) is the canonical one.
func (db *DB) GetMapping(ctx context.Context, system, entityType string, localID int64) (*models.EntityMapping, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM entity_mappings
		 WHERE system = ? AND entity_type = ? AND local_id = ? AND deleted_at IS NULL
		 ORDER BY id LIMIT 1`,
		system, entityType, localID)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping %s/%s/%d: %w", system, entityType, localID, err)
	}
	return m, nil
}

// GetMappingByExternalID returns the live mapping for an external entity.
func (db *DB) GetMappingByExternalID(ctx context.Context, system, entityType, externalID string) (*models.EntityMapping, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM entity_mappings
		 WHERE system = ? AND entity_type = ? AND external_id = ? AND deleted_at IS NULL`,
		system, entityType, externalID)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping %s/%s/%s: %w", system, entityType, externalID, err)
	}
	return m, nil
}

// ListMappings returns all live mappings of one entity type for a system.
func (db *DB) ListMappings(ctx context.Context, system, entityType string) ([]*models.EntityMapping, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.db.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM entity_mappings
		 WHERE system = ? AND entity_type = ? AND deleted_at IS NULL
		 ORDER BY local_id`,
		system, entityType)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()
	return collectMappings(rows)
}

// ListConflicts returns live mappings currently flagged for manual review.
func (db *DB) ListConflicts(ctx context.Context, system string) ([]*models.EntityMapping, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.db.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM entity_mappings
		 WHERE system = ? AND conflict = 1 AND deleted_at IS NULL
		 ORDER BY updated_at DESC`,
		system)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()
	return collectMappings(rows)
}

func collectMappings(rows *sql.Rows) ([]*models.EntityMapping, error) {
	var out []*models.EntityMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMapping inserts a live mapping. Returns ErrAlreadyMapped when either
// side of the pairing is already taken by a live row.
func (db *DB) CreateMapping(ctx context.Context, m *models.EntityMapping) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO entity_mappings (
			system, entity_type, local_id, external_id, direction, origin,
			conflict, conflict_detail, last_synced_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, '', NULL, ?, ?)`,
		m.System, m.EntityType, m.LocalID, m.ExternalID, m.Direction, m.Origin, now, now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, ErrAlreadyMapped
		}
		return 0, fmt.Errorf("create mapping: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("mapping insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return id, nil
}

// SoftDeleteMapping unmaps an entity. The row stays for audit; the partial
// unique indexes stop seeing it, so both sides may be re-paired.
func (db *DB) SoftDeleteMapping(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.db.ExecContext(ctx,
		`UPDATE entity_mappings SET deleted_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete mapping %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete mapping %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMappingConflict flags a mapping for review and stores the serialized
// field-diff list describing what disagrees.
func (db *DB) SetMappingConflict(ctx context.Context, id int64, detail string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		`UPDATE entity_mappings SET conflict = 1, conflict_detail = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`, detail, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set mapping conflict %d: %w", id, err)
	}
	return nil
}

// ResolveConflict clears the conflict flag after an operator has chosen a
// side (the chosen side is applied by the caller before clearing).
func (db *DB) ResolveConflict(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.db.ExecContext(ctx,
		`UPDATE entity_mappings SET conflict = 0, conflict_detail = '', updated_at = ?
		 WHERE id = ? AND conflict = 1 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("resolve conflict %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve conflict %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchMappingSynced records a successful sync pass over a mapping.
func (db *DB) TouchMappingSynced(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	_, err := db.db.ExecContext(ctx,
		`UPDATE entity_mappings SET last_synced_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return fmt.Errorf("touch mapping %d: %w", id, err)
	}
	return nil
}

// UpsertSuggestion records an auto-suggested room-type match. Re-suggesting
// the same pair refreshes its score instead of duplicating the row.
func (db *DB) UpsertSuggestion(ctx context.Context, s *models.MappingSuggestion) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO mapping_suggestions (system, local_id, external_id, external_name, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(system, local_id, external_id)
		 DO UPDATE SET external_name = excluded.external_name, score = excluded.score`,
		s.System, s.LocalID, s.ExternalID, s.ExternalName, s.Score, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert suggestion: %w", err)
	}
	return nil
}

// ListSuggestions returns pending suggestions for a system, best match first.
func (db *DB) ListSuggestions(ctx context.Context, system string) ([]*models.MappingSuggestion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.db.QueryContext(ctx,
		`SELECT id, system, local_id, external_id, external_name, score, created_at
		 FROM mapping_suggestions WHERE system = ? ORDER BY score DESC, local_id`,
		system)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var out []*models.MappingSuggestion
	for rows.Next() {
		var s models.MappingSuggestion
		if err := rows.Scan(&s.ID, &s.System, &s.LocalID, &s.ExternalID,
			&s.ExternalName, &s.Score, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteSuggestion removes a suggestion, typically after the operator
// confirmed or dismissed it.
func (db *DB) DeleteSuggestion(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		`DELETE FROM mapping_suggestions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete suggestion %d: %w", id, err)
	}
	return nil
}
