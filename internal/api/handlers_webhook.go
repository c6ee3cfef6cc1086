// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// maxWebhookBody bounds webhook payloads; a booking notification is small.
const maxWebhookBody = 256 * 1024

// Webhook receives a booking notification pushed by an external system and
// queues it for ingestion. The handler only authenticates, decodes, and
// queues: processing happens on the inbound consumer, so the external
// system gets a fast acknowledgment regardless of local load.
// POST /webhooks/{system}
//
// Authentication is an HMAC-SHA256 hex signature of the raw body in the
// X-Webhook-Signature header, keyed with the per-system webhook secret. A
// system without a configured secret does not accept webhooks.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	system := chi.URLParam(r, "system")

	channelCfg := h.cfg.Channel(system)
	if channelCfg == nil || !channelCfg.Enabled {
		rw.NotFound("unknown or disabled system: " + system)
		return
	}
	if channelCfg.WebhookSecret == "" {
		rw.NotFound("webhooks are not enabled for " + system)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		rw.BadRequest("failed to read request body")
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Webhook-Signature")
	if signature == "" {
		rw.Unauthorized("X-Webhook-Signature header required")
		return
	}
	if !verifyWebhookSignature(body, signature, channelCfg.WebhookSecret) {
		logging.Warn().Str("system", system).Msg("webhook signature verification failed")
		rw.Unauthorized("signature verification failed")
		return
	}

	var booking models.ExternalBooking
	if err := json.Unmarshal(body, &booking); err != nil {
		rw.BadRequest("invalid booking payload")
		return
	}
	if booking.ID == "" {
		rw.BadRequest("booking id is required")
		return
	}

	if err := h.queue.QueueInboundBooking(r.Context(), system, &booking); err != nil {
		rw.InternalError(err)
		return
	}

	logging.Info().
		Str("system", system).
		Str("booking_id", booking.ID).
		Msg("webhook booking queued")
	rw.Accepted(map[string]any{"booking_id": booking.ID})
}

// verifyWebhookSignature checks an HMAC-SHA256 hex signature in constant
// time.
func verifyWebhookSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
