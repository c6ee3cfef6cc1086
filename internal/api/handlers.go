// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/channel"
	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// SyncManager is the channel-management surface the handlers drive.
// Satisfied by channel.Manager.
type SyncManager interface {
	Systems() []string
	TriggerFullSync(ctx context.Context, system string) (*models.SyncRun, error)
	SyncStatus(ctx context.Context, system string) (*models.SyncRun, string, error)
	ListConflicts(ctx context.Context, system string) ([]*models.EntityMapping, error)
	ResolveConflict(ctx context.Context, system string, mappingID int64, keepLocal bool) error
}

// WorkQueue is the publishing surface the handlers queue async work through.
// Satisfied by events.SyncPublisher.
type WorkQueue interface {
	QueueReservationUpdate(ctx context.Context, system string, reservationID int64) error
	QueueReservationCancel(ctx context.Context, system string, reservationID int64) error
	QueueInboundBooking(ctx context.Context, system string, booking *models.ExternalBooking) error
}

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	cfg     *config.Config
	db      *database.DB
	manager SyncManager
	queue   WorkQueue
	dlq     DeadLetterQueue

	// brokerHealthy reports event-bus reachability for the readiness probe.
	// Nil means no broker is wired, which counts as healthy.
	brokerHealthy func(ctx context.Context) bool
}

// NewHandler creates the handler set.
func NewHandler(cfg *config.Config, db *database.DB, manager SyncManager, queue WorkQueue, dlq DeadLetterQueue, brokerHealthy func(ctx context.Context) bool) *Handler {
	return &Handler{
		cfg:           cfg,
		db:            db,
		manager:       manager,
		queue:         queue,
		dlq:           dlq,
		brokerHealthy: brokerHealthy,
	}
}

// SyncRunResponse wraps a run with the live breaker state.
type SyncRunResponse struct {
	Run          *models.SyncRun `json:"run"`
	BreakerState string          `json:"breaker_state,omitempty"`
}

// TriggerSync starts a full sync for one system and waits for it.
// POST /api/v1/sync/{system}
//
// A second trigger while a run is active answers 409 rather than queueing:
// the single-run guard is the engine's protection against overlapping
// writes, and the operator should see it, not have it papered over.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	system := chi.URLParam(r, "system")

	run, err := h.manager.TriggerFullSync(r.Context(), system)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrRunActive):
			rw.Conflict(ErrCodeSyncRunActive, err.Error())
		case isUnknownSystem(err):
			rw.NotFound("unknown or disabled system: " + system)
		default:
			rw.InternalError(err)
		}
		return
	}
	rw.Success(SyncRunResponse{Run: run})
}

// SyncStatus reports the latest run and breaker state for one system.
// GET /api/v1/sync/{system}
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	system := chi.URLParam(r, "system")

	run, breakerState, err := h.manager.SyncStatus(r.Context(), system)
	if err != nil {
		if isUnknownSystem(err) {
			rw.NotFound("unknown or disabled system: " + system)
			return
		}
		rw.InternalError(err)
		return
	}
	rw.Success(SyncRunResponse{Run: run, BreakerState: breakerState})
}

// ListSystems reports the enabled integrations.
// GET /api/v1/systems
func (h *Handler) ListSystems(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]any{"systems": h.manager.Systems()})
}

// ListConflicts returns the mappings flagged for manual review.
// GET /api/v1/conflicts/{system}
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	system := chi.URLParam(r, "system")

	conflicts, err := h.manager.ListConflicts(r.Context(), system)
	if err != nil {
		if isUnknownSystem(err) {
			rw.NotFound("unknown or disabled system: " + system)
			return
		}
		rw.InternalError(err)
		return
	}
	if conflicts == nil {
		conflicts = []*models.EntityMapping{}
	}
	rw.Success(map[string]any{"conflicts": conflicts, "count": len(conflicts)})
}

// ResolveConflictRequest is the body for conflict resolution.
type ResolveConflictRequest struct {
	KeepLocal bool `json:"keep_local"`
}

// ResolveConflict applies the operator's choice for one flagged mapping.
// POST /api/v1/conflicts/{system}/{id}/resolve
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	system := chi.URLParam(r, "system")

	mappingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("invalid mapping id")
		return
	}

	var req ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}

	if err := h.manager.ResolveConflict(r.Context(), system, mappingID, req.KeepLocal); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			rw.NotFound("no such conflict")
		case isUnknownSystem(err):
			rw.NotFound("unknown or disabled system: " + system)
		default:
			rw.InternalError(err)
		}
		return
	}
	rw.Success(map[string]any{"resolved": mappingID, "keep_local": req.KeepLocal})
}

// ListSuggestions returns pending room-type mapping suggestions.
// GET /api/v1/suggestions/{system}
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	system := chi.URLParam(r, "system")

	suggestions, err := h.db.ListSuggestions(r.Context(), system)
	if err != nil {
		rw.InternalError(err)
		return
	}
	if suggestions == nil {
		suggestions = []*models.MappingSuggestion{}
	}
	rw.Success(map[string]any{"suggestions": suggestions, "count": len(suggestions)})
}

// DismissSuggestion removes one suggestion.
// DELETE /api/v1/suggestions/{id}
func (h *Handler) DismissSuggestion(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("invalid suggestion id")
		return
	}
	if err := h.db.DeleteSuggestion(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("no such suggestion")
			return
		}
		rw.InternalError(err)
		return
	}
	rw.NoContent()
}

// SyncSettingRequest is the body for toggling per-property sync.
type SyncSettingRequest struct {
	PropertyID string `json:"property_id"`
	System     string `json:"system"`
	Enabled    bool   `json:"enabled"`
}

// SetSyncSetting enables or disables sync for one property and system.
// PUT /api/v1/settings/sync
func (h *Handler) SetSyncSetting(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SyncSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if req.PropertyID == "" || req.System == "" {
		rw.BadRequest("property_id and system are required")
		return
	}

	if err := h.db.SetSyncEnabled(r.Context(), req.PropertyID, req.System, req.Enabled); err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(req)
}

// GetSyncSetting reports whether sync is enabled for a property and system.
// GET /api/v1/settings/sync?property_id=...&system=...
func (h *Handler) GetSyncSetting(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	propertyID := r.URL.Query().Get("property_id")
	system := r.URL.Query().Get("system")
	if propertyID == "" || system == "" {
		rw.BadRequest("property_id and system are required")
		return
	}

	enabled, err := h.db.IsSyncEnabled(r.Context(), propertyID, system)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(SyncSettingRequest{PropertyID: propertyID, System: system, Enabled: enabled})
}

// QueuePush queues an outbound push of one reservation.
// POST /api/v1/reservations/{id}/push/{system}
//
// The push itself happens on the outbound consumer; create-versus-update is
// decided there from the reservation's stored external id.
func (h *Handler) QueuePush(w http.ResponseWriter, r *http.Request) {
	h.queueReservationWork(w, r, h.queue.QueueReservationUpdate)
}

// QueueCancel queues an outbound cancellation of one reservation.
// POST /api/v1/reservations/{id}/cancel/{system}
func (h *Handler) QueueCancel(w http.ResponseWriter, r *http.Request) {
	h.queueReservationWork(w, r, h.queue.QueueReservationCancel)
}

func (h *Handler) queueReservationWork(w http.ResponseWriter, r *http.Request, queue func(context.Context, string, int64) error) {
	rw := NewResponseWriter(w, r)
	system := chi.URLParam(r, "system")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("invalid reservation id")
		return
	}
	if _, err := h.db.GetReservation(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("no such reservation")
			return
		}
		rw.InternalError(err)
		return
	}

	if err := queue(r.Context(), system, id); err != nil {
		rw.InternalError(err)
		return
	}
	rw.Accepted(map[string]any{"reservation_id": id, "system": system})
}

// Health answers the liveness probe.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]any{"status": "ok"})
}

// Ready answers the readiness probe: datastore reachable and, when a broker
// is wired, topology present.
// GET /health/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.db.Ping(r.Context()); err != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "database unavailable")
		return
	}
	if h.brokerHealthy != nil && !h.brokerHealthy(r.Context()) {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event broker unavailable")
		return
	}
	rw.Success(map[string]any{"status": "ready"})
}

// isUnknownSystem reports whether err is the manager's unknown-system
// configuration rejection.
func isUnknownSystem(err error) bool {
	var cfgErr *channel.ConfigurationError
	return errors.As(err, &cfgErr)
}
