// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/channel"
	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/events"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

const webhookSecret = "test-webhook-secret-0123456789abcdef"

// fakeManager satisfies SyncManager with canned responses.
type fakeManager struct {
	systems    []string
	run        *models.SyncRun
	triggerErr error
	resolved   []int64
	keepLocal  bool
}

func (f *fakeManager) Systems() []string { return f.systems }

func (f *fakeManager) TriggerFullSync(ctx context.Context, system string) (*models.SyncRun, error) {
	if !f.knows(system) {
		return nil, &channel.ConfigurationError{System: system, Reason: "system is not enabled"}
	}
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	return f.run, nil
}

func (f *fakeManager) SyncStatus(ctx context.Context, system string) (*models.SyncRun, string, error) {
	if !f.knows(system) {
		return nil, "", &channel.ConfigurationError{System: system, Reason: "system is not enabled"}
	}
	return f.run, "closed", nil
}

func (f *fakeManager) ListConflicts(ctx context.Context, system string) ([]*models.EntityMapping, error) {
	if !f.knows(system) {
		return nil, &channel.ConfigurationError{System: system, Reason: "system is not enabled"}
	}
	return nil, nil
}

func (f *fakeManager) ResolveConflict(ctx context.Context, system string, mappingID int64, keepLocal bool) error {
	if !f.knows(system) {
		return &channel.ConfigurationError{System: system, Reason: "system is not enabled"}
	}
	f.resolved = append(f.resolved, mappingID)
	f.keepLocal = keepLocal
	return nil
}

func (f *fakeManager) knows(system string) bool {
	for _, s := range f.systems {
		if s == system {
			return true
		}
	}
	return false
}

// fakeQueue records queued work.
type fakeQueue struct {
	pushed   []int64
	canceled []int64
	inbound  []*models.ExternalBooking
}

func (f *fakeQueue) QueueReservationUpdate(ctx context.Context, system string, id int64) error {
	f.pushed = append(f.pushed, id)
	return nil
}

func (f *fakeQueue) QueueReservationCancel(ctx context.Context, system string, id int64) error {
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeQueue) QueueInboundBooking(ctx context.Context, system string, booking *models.ExternalBooking) error {
	f.inbound = append(f.inbound, booking)
	return nil
}

// fakeDLQ serves canned dead-letter entries.
type fakeDLQ struct {
	entries  []events.DLQEntry
	replayed []uint64
	deleted  []uint64
}

func (f *fakeDLQ) List(ctx context.Context, system, direction string, limit int) ([]events.DLQEntry, error) {
	return f.entries, nil
}

func (f *fakeDLQ) Replay(ctx context.Context, seq uint64) error {
	f.replayed = append(f.replayed, seq)
	return nil
}

func (f *fakeDLQ) Delete(ctx context.Context, seq uint64) error {
	f.deleted = append(f.deleted, seq)
	return nil
}

type fixture struct {
	router  http.Handler
	db      *database.DB
	manager *fakeManager
	queue   *fakeQueue
	dlq     *fakeDLQ
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Path:        ":memory:",
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{RequestsPerMinute: 10000},
		Beds24: config.ChannelConfig{
			Enabled:       true,
			WebhookSecret: webhookSecret,
		},
		Channex: config.ChannelConfig{Enabled: true},
	}

	manager := &fakeManager{
		systems: []string{"beds24", "channex"},
		run:     &models.SyncRun{System: "beds24", Status: models.SyncRunCompleted},
	}
	queue := &fakeQueue{}
	dlq := &fakeDLQ{}

	h := NewHandler(cfg, db, manager, queue, dlq, nil)
	return &fixture{
		router:  NewRouter(h),
		db:      db,
		manager: manager,
		queue:   queue,
		dlq:     dlq,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestTriggerSync(t *testing.T) {
	t.Run("completed run", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/v1/sync/beds24", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Error("expected success")
		}
	})

	t.Run("active run answers 409", func(t *testing.T) {
		f := newFixture(t)
		f.manager.triggerErr = database.ErrRunActive
		rec := f.do(t, http.MethodPost, "/api/v1/sync/beds24", nil, nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Error == nil || resp.Error.Code != ErrCodeSyncRunActive {
			t.Errorf("error = %+v", resp.Error)
		}
	})

	t.Run("unknown system answers 404", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/v1/sync/cloudbeds", nil, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestSyncStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/sync/beds24", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var payload struct {
		Data SyncRunResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Data.BreakerState != "closed" {
		t.Errorf("breaker state = %q", payload.Data.BreakerState)
	}
}

func TestResolveConflict(t *testing.T) {
	f := newFixture(t)
	body, _ := json.Marshal(ResolveConflictRequest{KeepLocal: true})

	rec := f.do(t, http.MethodPost, "/api/v1/conflicts/beds24/42/resolve", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(f.manager.resolved) != 1 || f.manager.resolved[0] != 42 {
		t.Errorf("resolved = %v", f.manager.resolved)
	}
	if !f.manager.keepLocal {
		t.Error("keep_local not propagated")
	}

	t.Run("invalid id", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/conflicts/beds24/abc/resolve", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestQueuePush(t *testing.T) {
	f := newFixture(t)

	guestID := seedGuest(t, f.db)
	roomTypeID := seedRoomType(t, f.db)
	resID := seedReservation(t, f.db, guestID, roomTypeID)

	t.Run("queues existing reservation", func(t *testing.T) {
		rec := f.do(t, http.MethodPost,
			"/api/v1/reservations/"+itoa(resID)+"/push/beds24", nil, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if len(f.queue.pushed) != 1 || f.queue.pushed[0] != resID {
			t.Errorf("pushed = %v", f.queue.pushed)
		}
	})

	t.Run("unknown reservation answers 404", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/reservations/99999/push/beds24", nil, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("cancel queues cancellation", func(t *testing.T) {
		rec := f.do(t, http.MethodPost,
			"/api/v1/reservations/"+itoa(resID)+"/cancel/beds24", nil, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d", rec.Code)
		}
		if len(f.queue.canceled) != 1 || f.queue.canceled[0] != resID {
			t.Errorf("canceled = %v", f.queue.canceled)
		}
	})
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook(t *testing.T) {
	booking := models.ExternalBooking{
		ID:       "555",
		RoomID:   "R-12",
		CheckIn:  "2026-09-10",
		CheckOut: "2026-09-12",
		Status:   1,
	}
	body, _ := json.Marshal(booking)

	t.Run("valid signature queues booking", func(t *testing.T) {
		f := newFixture(t)
		header := http.Header{}
		header.Set("X-Webhook-Signature", signBody(body))

		rec := f.do(t, http.MethodPost, "/webhooks/beds24", body, header)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if len(f.queue.inbound) != 1 || f.queue.inbound[0].ID != "555" {
			t.Errorf("inbound = %+v", f.queue.inbound)
		}
	})

	t.Run("missing signature answers 401", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/webhooks/beds24", body, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if len(f.queue.inbound) != 0 {
			t.Error("unauthenticated booking must not be queued")
		}
	})

	t.Run("wrong signature answers 401", func(t *testing.T) {
		f := newFixture(t)
		header := http.Header{}
		header.Set("X-Webhook-Signature", signBody([]byte("tampered")))

		rec := f.do(t, http.MethodPost, "/webhooks/beds24", body, header)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("system without secret answers 404", func(t *testing.T) {
		f := newFixture(t)
		header := http.Header{}
		header.Set("X-Webhook-Signature", signBody(body))

		rec := f.do(t, http.MethodPost, "/webhooks/channex", body, header)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("booking without id answers 400", func(t *testing.T) {
		f := newFixture(t)
		payload := []byte(`{"status":1}`)
		header := http.Header{}
		header.Set("X-Webhook-Signature", signBody(payload))

		rec := f.do(t, http.MethodPost, "/webhooks/beds24", payload, header)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestDLQEndpoints(t *testing.T) {
	f := newFixture(t)
	f.dlq.entries = []events.DLQEntry{
		{Sequence: 7, System: "beds24", EventType: "reservation.create", RetryCount: 5},
	}

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/dlq/beds24?direction=outbound&limit=10", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var payload struct {
			Data struct {
				Count int `json:"count"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Data.Count != 1 {
			t.Errorf("count = %d", payload.Data.Count)
		}
	})

	t.Run("bad direction", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/dlq/beds24?direction=sideways", nil, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("replay", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/dlq/entries/7/replay", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if len(f.dlq.replayed) != 1 || f.dlq.replayed[0] != 7 {
			t.Errorf("replayed = %v", f.dlq.replayed)
		}
	})

	t.Run("replay all", func(t *testing.T) {
		f.dlq.replayed = nil
		rec := f.do(t, http.MethodPost, "/api/v1/dlq/beds24/replay-all?direction=outbound", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if len(f.dlq.replayed) != 1 || f.dlq.replayed[0] != 7 {
			t.Errorf("replayed = %v", f.dlq.replayed)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/v1/dlq/entries/7", nil, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if len(f.dlq.deleted) != 1 || f.dlq.deleted[0] != 7 {
			t.Errorf("deleted = %v", f.dlq.deleted)
		}
	})
}

func TestSyncSettings(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(SyncSettingRequest{PropertyID: "prop-1", System: "beds24", Enabled: true})
	rec := f.do(t, http.MethodPut, "/api/v1/settings/sync", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/settings/sync?property_id=prop-1&system=beds24", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Data SyncSettingRequest `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Data.Enabled {
		t.Error("expected sync enabled")
	}

	t.Run("missing params answer 400", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/settings/sync", nil, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func seedRoomType(t *testing.T, db *database.DB) int64 {
	t.Helper()
	id, err := db.CreateRoomType(context.Background(), &models.RoomType{
		PropertyID: "prop-1",
		Name:       "Double",
		Quantity:   4,
		BasePrice:  120,
		Currency:   "EUR",
		MaxAdults:  2,
	})
	if err != nil {
		t.Fatalf("seed room type: %v", err)
	}
	return id
}

func seedGuest(t *testing.T, db *database.DB) int64 {
	t.Helper()
	id, err := db.CreateGuest(context.Background(), &models.Guest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	if err != nil {
		t.Fatalf("seed guest: %v", err)
	}
	return id
}

func seedReservation(t *testing.T, db *database.DB, guestID, roomTypeID int64) int64 {
	t.Helper()
	id, err := db.CreateReservation(context.Background(), &models.Reservation{
		PropertyID:    "prop-1",
		RoomTypeID:    roomTypeID,
		GuestID:       guestID,
		CheckIn:       "2026-09-10",
		CheckOut:      "2026-09-12",
		Adults:        2,
		Status:        models.ReservationStatusConfirmed,
		PaymentStatus: models.PaymentStatusUnpaid,
		Source:        models.SourceDirect,
		Currency:      "EUR",
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return id
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/health/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readiness status = %d", rec.Code)
	}
}
