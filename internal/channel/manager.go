// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// System bundles one external integration's services.
type System struct {
	Adapter      Adapter
	Push         *PushService
	Pull         *PullService
	Orchestrator *Orchestrator
}

// Manager owns one System per enabled external integration and exposes the
// admin trigger surface: trigger sync, read status, resolve conflicts.
// Construction decrypts credentials; plaintext lives only inside the
// per-system clients.
type Manager struct {
	db      *database.DB
	cfg     *config.Config
	systems map[string]*System
}

// NewManager builds services for every enabled system. A system whose
// credential fails to decrypt is a configuration error: better to refuse to
// start than to run half-integrated.
func NewManager(db *database.DB, cfg *config.Config, encryptor *config.CredentialEncryptor) (*Manager, error) {
	m := &Manager{db: db, cfg: cfg, systems: make(map[string]*System)}

	for _, name := range cfg.EnabledSystems() {
		channelCfg := cfg.Channel(name)
		if channelCfg == nil {
			continue
		}

		if encryptor == nil {
			return nil, &ConfigurationError{System: name,
				Reason: "credential secret not configured"}
		}
		credential, err := encryptor.Decrypt(channelCfg.CredentialCiphertext)
		if err != nil {
			return nil, &ConfigurationError{System: name,
				Reason: fmt.Sprintf("credential decryption failed: %v", err)}
		}

		client, err := NewClient(name, channelCfg, credential)
		if err != nil {
			return nil, err
		}

		var adapter Adapter
		switch name {
		case "beds24":
			adapter = NewBeds24Adapter(client)
		case "channex":
			adapter = NewChannexAdapter(client)
		default:
			return nil, &ConfigurationError{System: name, Reason: "unknown external system"}
		}

		pull := NewPullService(db, adapter, channelCfg.PropertyID, nil)
		m.systems[name] = &System{
			Adapter:      adapter,
			Push:         NewPushService(db, adapter, channelCfg.PropertyID),
			Pull:         pull,
			Orchestrator: NewOrchestrator(db, pull, name, cfg.Sync.PullWindowDays),
		}
		logging.Info().
			Str("system", name).
			Str("base_url", channelCfg.BaseURL).
			Msg("channel integration configured")
	}
	return m, nil
}

// System returns the named integration, or nil when not enabled.
func (m *Manager) System(name string) *System {
	return m.systems[name]
}

// Systems lists the enabled integration names.
func (m *Manager) Systems() []string {
	names := make([]string, 0, len(m.systems))
	for name := range m.systems {
		names = append(names, name)
	}
	return names
}

// TriggerFullSync starts a full sync for one system. The single-active-run
// guard lives in the datastore; callers translate database.ErrRunActive into
// an operator-facing message.
func (m *Manager) TriggerFullSync(ctx context.Context, system string) (*models.SyncRun, error) {
	sys := m.systems[system]
	if sys == nil {
		return nil, &ConfigurationError{System: system, Reason: "system is not enabled"}
	}
	return sys.Orchestrator.RunFullSync(ctx)
}

// SyncStatus reports the latest run for one system, including the live
// breaker state for the status surface.
func (m *Manager) SyncStatus(ctx context.Context, system string) (*models.SyncRun, string, error) {
	sys := m.systems[system]
	if sys == nil {
		return nil, "", &ConfigurationError{System: system, Reason: "system is not enabled"}
	}
	run, err := sys.Orchestrator.Status(ctx)
	if err != nil {
		return nil, "", err
	}
	return run, sys.Adapter.BreakerState(), nil
}

// ListConflicts returns the mappings flagged for manual review.
func (m *Manager) ListConflicts(ctx context.Context, system string) ([]*models.EntityMapping, error) {
	if m.systems[system] == nil {
		return nil, &ConfigurationError{System: system, Reason: "system is not enabled"}
	}
	return m.db.ListConflicts(ctx, system)
}

// ResolveConflict applies the operator's choice for a flagged mapping and
// clears the flag. keepLocal pushes the local state back out; otherwise the
// next pull lets the external state through.
func (m *Manager) ResolveConflict(ctx context.Context, system string, mappingID int64, keepLocal bool) error {
	sys := m.systems[system]
	if sys == nil {
		return &ConfigurationError{System: system, Reason: "system is not enabled"}
	}

	mapping, err := m.findConflict(ctx, system, mappingID)
	if err != nil {
		return err
	}

	if keepLocal && mapping.EntityType == models.EntityReservation {
		result := sys.Push.PushReservation(ctx, mapping.LocalID)
		if !result.Success {
			return fmt.Errorf("re-push after conflict resolution: %s", result.Error)
		}
	}
	if !keepLocal && mapping.EntityType == models.EntityReservation {
		local, err := m.db.GetReservation(ctx, mapping.LocalID)
		if err != nil {
			return err
		}
		// Accepting the external side: mark the reservation as
		// externally-owned so the next pull overwrites it freely.
		if local.Source == models.SourceDirect {
			local.Source = models.SourceOther
			if err := m.db.UpdateReservation(ctx, local); err != nil {
				return err
			}
		}
	}
	return m.db.ResolveConflict(ctx, mappingID)
}

func (m *Manager) findConflict(ctx context.Context, system string, mappingID int64) (*models.EntityMapping, error) {
	conflicts, err := m.db.ListConflicts(ctx, system)
	if err != nil {
		return nil, err
	}
	for _, c := range conflicts {
		if c.ID == mappingID {
			return c, nil
		}
	}
	return nil, database.ErrNotFound
}

// PullScheduler periodically runs a bounded reservation pull for one
// system. It implements suture.Service; Serve blocks until ctx is done.
type PullScheduler struct {
	sys      *System
	system   string
	interval time.Duration
	window   int
}

// NewPullScheduler builds the periodic pull loop for one system.
func NewPullScheduler(sys *System, system string, interval time.Duration, windowDays int) *PullScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	return &PullScheduler{sys: sys, system: system, interval: interval, window: windowDays}
}

// Serve runs the pull loop until the context is cancelled.
func (p *PullScheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			from := time.Now().UTC().AddDate(0, 0, -p.window).Format("2006-01-02")
			to := time.Now().UTC().AddDate(0, 0, p.window).Format("2006-01-02")
			run := p.sys.Pull.SyncReservations(ctx, from, to)
			logging.Debug().
				Str("system", p.system).
				Int("processed", run.ItemsProcessed).
				Int("failed", run.ItemsFailed).
				Msg("scheduled pull finished")
		}
	}
}

func (p *PullScheduler) String() string {
	return "pull-scheduler-" + p.system
}

// Reconciler periodically compares external bookings with local state and
// flags drift. It reuses the pull path (which detects and routes conflicts)
// over a narrow recent window, on a slower cadence than the pull scheduler.
type Reconciler struct {
	sys      *System
	system   string
	interval time.Duration
}

// NewReconciler builds the reconciliation loop for one system.
func NewReconciler(sys *System, system string, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Reconciler{sys: sys, system: system, interval: interval}
}

// Serve runs the reconciliation loop until the context is cancelled.
func (r *Reconciler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			from := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
			to := time.Now().UTC().AddDate(0, 0, 90).Format("2006-01-02")
			run := r.sys.Pull.SyncReservations(ctx, from, to)
			if run.ItemsFailed > 0 {
				logging.Warn().
					Str("system", r.system).
					Int("failed", run.ItemsFailed).
					Msg("reconciliation found failing items")
			}
		}
	}
}

func (r *Reconciler) String() string {
	return "reconciler-" + r.system
}
