// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

// Package database implements the SQLite datastore for reservations, rooms,
// guests, entity mappings, sync runs, and sync settings.
//
// The schema is created idempotently on open (CREATE TABLE IF NOT EXISTS);
// there is no separate migration tooling in this repository. Concurrency
// invariants the engine relies on (one external id per local entity, one
// active sync run per system) are enforced here with UNIQUE indexes and
// conditional updates, not in application memory.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lodgekeeper/lodgekeeper/internal/config"
)

// queryTimeout bounds individual statements so a wedged database cannot
// stall a consumer indefinitely.
const queryTimeout = 30 * time.Second

// DB wraps the SQL connection pool and exposes typed store methods.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at cfg.Path, applies pragmas,
// and ensures the schema exists. Use Path ":memory:" for tests.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite allows many readers but a single writer; a single pooled
	// connection avoids SQLITE_BUSY churn between our own goroutines.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	busyMillis := cfg.BusyTimeout.Milliseconds()
	if busyMillis <= 0 {
		busyMillis = 5000
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyMillis),
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	db := &DB{db: conn}
	if err := db.ensureSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return db, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping verifies the datastore is reachable. Used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return db.db.PingContext(ctx)
}

// withTimeout derives a bounded context for one statement.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// isConstraintViolation reports whether an error is a UNIQUE or CHECK
// constraint failure from SQLite.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "UNIQUE")
}
