// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"
	"errors"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/metrics"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// Orchestrator runs full syncs for one external system: room sync then
// reservation sync as two ordered phases. A phase failure does not abort the
// other phase; both outcomes land in the aggregate error list. The datastore
// enforces that only one run per system is active at a time.
type Orchestrator struct {
	db             *database.DB
	pull           *PullService
	system         string
	pullWindowDays int
}

// NewOrchestrator builds the full-sync orchestrator for one system.
// pullWindowDays bounds how far around today reservation sync reaches.
func NewOrchestrator(db *database.DB, pull *PullService, system string, pullWindowDays int) *Orchestrator {
	if pullWindowDays <= 0 {
		pullWindowDays = 365
	}
	return &Orchestrator{db: db, pull: pull, system: system, pullWindowDays: pullWindowDays}
}

// RunFullSync executes both phases and persists progress after each.
// Returns database.ErrRunActive when a run is already in flight for this
// system; any other error means the run record itself could not be managed.
// Item-level failures never fail the run; they are recorded in its error
// list.
func (o *Orchestrator) RunFullSync(ctx context.Context) (*models.SyncRun, error) {
	run, err := o.db.StartRun(ctx, o.system, "full")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logging.Info().Str("system", o.system).Int64("run", run.ID).Msg("full sync started")

	// Phase 1: rooms. Reservation ingestion depends on room-type mappings,
	// so rooms go first; but a room failure must still let reservation sync
	// attempt whatever mappings already exist.
	roomRun := o.pull.SyncRooms(ctx)
	run.Merge(roomRun)
	if err := o.db.UpdateRunProgress(ctx, run); err != nil {
		logging.Error().Err(err).Int64("run", run.ID).Msg("failed to persist phase progress")
	}

	// Phase 2: reservations.
	from := time.Now().UTC().AddDate(0, 0, -o.pullWindowDays).Format("2006-01-02")
	to := time.Now().UTC().AddDate(0, 0, o.pullWindowDays).Format("2006-01-02")
	resRun := o.pull.SyncReservations(ctx, from, to)
	run.Merge(resRun)

	// Failed means nothing moved: any successful item keeps the run in
	// completed, with the error list carrying the partial failures.
	status := models.SyncRunCompleted
	if run.ItemsFailed > 0 && run.ItemsCreated == 0 && run.ItemsUpdated == 0 {
		status = models.SyncRunFailed
	}
	if err := o.db.FinishRun(ctx, run, status); err != nil {
		return run, err
	}

	metrics.SyncRunDuration.WithLabelValues(o.system).Observe(time.Since(start).Seconds())
	logging.Info().
		Str("system", o.system).
		Int64("run", run.ID).
		Str("status", string(status)).
		Int("processed", run.ItemsProcessed).
		Int("created", run.ItemsCreated).
		Int("updated", run.ItemsUpdated).
		Int("failed", run.ItemsFailed).
		Dur("duration", time.Since(start)).
		Msg("full sync finished")
	return run, nil
}

// Status returns the latest run record for this system, or an idle record
// when no run has ever happened.
func (o *Orchestrator) Status(ctx context.Context) (*models.SyncRun, error) {
	run, err := o.db.GetLatestRun(ctx, o.system)
	if errors.Is(err, database.ErrNotFound) {
		return &models.SyncRun{System: o.system, Status: models.SyncRunIdle}, nil
	}
	return run, err
}
