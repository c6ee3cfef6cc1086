// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lodgekeeper/lodgekeeper/internal/events"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
)

// DeadLetterQueue is the inspection surface for parked messages. Satisfied
// by events.DLQ.
type DeadLetterQueue interface {
	List(ctx context.Context, system, direction string, limit int) ([]events.DLQEntry, error)
	Replay(ctx context.Context, sequence uint64) error
	Delete(ctx context.Context, sequence uint64) error
}

// ListDLQ returns parked messages for one system.
// GET /api/v1/dlq/{system}?direction=outbound&limit=50
func (h *Handler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.dlq == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "dead-letter queue not available")
		return
	}

	system := chi.URLParam(r, "system")
	direction := r.URL.Query().Get("direction")
	if direction != "" && direction != "inbound" && direction != "outbound" {
		rw.BadRequest("direction must be inbound or outbound")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			rw.BadRequest("limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.dlq.List(r.Context(), system, direction, limit)
	if err != nil {
		rw.InternalError(err)
		return
	}
	if entries == nil {
		entries = []events.DLQEntry{}
	}
	rw.Success(map[string]any{"entries": entries, "count": len(entries)})
}

// ReplayDLQ re-queues one parked message on its original subject.
// POST /api/v1/dlq/entries/{seq}/replay
func (h *Handler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.dlq == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "dead-letter queue not available")
		return
	}

	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		rw.BadRequest("invalid sequence")
		return
	}

	if err := h.dlq.Replay(r.Context(), seq); err != nil {
		if strings.Contains(err.Error(), "not found") {
			rw.NotFound("no such dead-letter entry")
			return
		}
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]any{"replayed": seq})
}

// ReplayAllDLQ re-queues every parked message for one system, optionally
// filtered by direction. Entries that fail to replay are skipped and
// reported; a partial replay is not rolled back.
// POST /api/v1/dlq/{system}/replay-all?direction=outbound
func (h *Handler) ReplayAllDLQ(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.dlq == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "dead-letter queue not available")
		return
	}

	system := chi.URLParam(r, "system")
	direction := r.URL.Query().Get("direction")
	if direction != "" && direction != "inbound" && direction != "outbound" {
		rw.BadRequest("direction must be inbound or outbound")
		return
	}

	entries, err := h.dlq.List(r.Context(), system, direction, 1000)
	if err != nil {
		rw.InternalError(err)
		return
	}

	replayed := 0
	failed := 0
	for _, entry := range entries {
		if err := h.dlq.Replay(r.Context(), entry.Sequence); err != nil {
			logging.Error().
				Err(err).
				Uint64("sequence", entry.Sequence).
				Str("system", system).
				Msg("dead-letter replay failed")
			failed++
			continue
		}
		replayed++
	}
	rw.Success(map[string]any{"replayed": replayed, "failed": failed})
}

// DeleteDLQ discards one parked message without replaying it.
// DELETE /api/v1/dlq/entries/{seq}
func (h *Handler) DeleteDLQ(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.dlq == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "dead-letter queue not available")
		return
	}

	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		rw.BadRequest("invalid sequence")
		return
	}
	if err := h.dlq.Delete(r.Context(), seq); err != nil {
		rw.InternalError(err)
		return
	}
	rw.NoContent()
}
