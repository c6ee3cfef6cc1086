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

	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

const syncRunColumns = `id, system, run_type, status, started_at, completed_at,
	items_processed, items_created, items_updated, items_failed, errors`

func scanSyncRun(row interface{ Scan(...any) error }) (*models.SyncRun, error) {
	var (
		r      models.SyncRun
		errRaw string
	)
	err := row.Scan(
		&r.ID, &r.System, &r.RunType, &r.Status, &r.StartedAt, &r.CompletedAt,
		&r.ItemsProcessed, &r.ItemsCreated, &r.ItemsUpdated, &r.ItemsFailed, &errRaw,
	)
	if err != nil {
		return nil, err
	}
	if errRaw != "" {
		if err := json.Unmarshal([]byte(errRaw), &r.Errors); err != nil {
			return nil, fmt.Errorf("decode run errors: %w", err)
		}
	}
	return &r, nil
}

// StartRun opens a sync run for a system. The partial unique index on
// running rows makes this the single-active-run gate: a second start while
// one is running fails with ErrRunActive.
func (db *DB) StartRun(ctx context.Context, system, runType string) (*models.SyncRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO sync_runs (system, run_type, status, started_at, errors)
		 VALUES (?, ?, ?, ?, '[]')`,
		system, runType, models.SyncRunRunning, now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrRunActive
		}
		return nil, fmt.Errorf("start run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("run insert id: %w", err)
	}
	return &models.SyncRun{
		ID:        id,
		System:    system,
		RunType:   runType,
		Status:    models.SyncRunRunning,
		StartedAt: &now,
	}, nil
}

// UpdateRunProgress persists the current counters and per-item errors while
// a run is in flight, so status queries see live progress.
func (db *DB) UpdateRunProgress(ctx context.Context, r *models.SyncRun) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	errJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}
	_, err = db.db.ExecContext(ctx,
		`UPDATE sync_runs SET items_processed = ?, items_created = ?,
			items_updated = ?, items_failed = ?, errors = ?
		 WHERE id = ?`,
		r.ItemsProcessed, r.ItemsCreated, r.ItemsUpdated, r.ItemsFailed,
		string(errJSON), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %d: %w", r.ID, err)
	}
	return nil
}

// FinishRun closes a run with a terminal status, releasing the
// single-active-run gate for its system.
func (db *DB) FinishRun(ctx context.Context, r *models.SyncRun, status models.SyncRunStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	errJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}
	now := time.Now().UTC()
	_, err = db.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, items_processed = ?,
			items_created = ?, items_updated = ?, items_failed = ?, errors = ?
		 WHERE id = ?`,
		status, now, r.ItemsProcessed, r.ItemsCreated, r.ItemsUpdated,
		r.ItemsFailed, string(errJSON), r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", r.ID, err)
	}
	r.Status = status
	r.CompletedAt = &now
	return nil
}

// GetLatestRun returns the most recent run for a system, running or not.
func (db *DB) GetLatestRun(ctx context.Context, system string) (*models.SyncRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowContext(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs
		 WHERE system = ? ORDER BY id DESC LIMIT 1`, system)
	r, err := scanSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for %s: %w", system, err)
	}
	return r, nil
}

// RecoverStaleRuns fails any runs left in the running state by a previous
// process so new runs are not blocked forever after a crash.
func (db *DB) RecoverStaleRuns(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?
		 WHERE status = ?`,
		models.SyncRunFailed, time.Now().UTC(), models.SyncRunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("recover stale runs: %w", err)
	}
	return res.RowsAffected()
}
