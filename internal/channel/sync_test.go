// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// fakeAdapter is an in-memory Adapter for service tests.
type fakeAdapter struct {
	mu sync.Mutex

	nextID   int
	created  map[string]*BookingPayload
	updated  map[string]*BookingPayload
	canceled []string

	bookings []models.ExternalBooking
	rooms    []models.ExternalRoom
	roomsErr error
	unitsErr error

	createErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		nextID:  1000,
		created: make(map[string]*BookingPayload),
		updated: make(map[string]*BookingPayload),
	}
}

func (f *fakeAdapter) System() string       { return "beds24" }
func (f *fakeAdapter) BreakerState() string { return "closed" }

func (f *fakeAdapter) CreateBooking(ctx context.Context, b *BookingPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("B-%d", f.nextID)
	f.created[id] = b
	return id, nil
}

func (f *fakeAdapter) UpdateBooking(ctx context.Context, externalID string, b *BookingPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[externalID] = b
	return nil
}

func (f *fakeAdapter) CancelBooking(ctx context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, externalID)
	return nil
}

func (f *fakeAdapter) ListBookings(ctx context.Context, from, to string) ([]models.ExternalBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings, nil
}

func (f *fakeAdapter) ListRooms(ctx context.Context) ([]models.ExternalRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roomsErr != nil {
		return nil, f.roomsErr
	}
	return f.rooms, nil
}

func (f *fakeAdapter) ListPropertyUnits(ctx context.Context) ([]models.ExternalRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unitsErr != nil {
		return nil, f.unitsErr
	}
	return f.rooms, nil
}

func (f *fakeAdapter) PushAvailability(ctx context.Context, updates []AvailabilityUpdate) error {
	return nil
}

func (f *fakeAdapter) PushRates(ctx context.Context, updates []RateUpdate) error {
	return nil
}

func (f *fakeAdapter) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func syncTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Path:        ":memory:",
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type syncFixture struct {
	db         *database.DB
	adapter    *fakeAdapter
	push       *PushService
	pull       *PullService
	roomTypeID int64
	guestID    int64
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	ctx := context.Background()
	db := syncTestDB(t)
	adapter := newFakeAdapter()

	roomTypeID, err := db.CreateRoomType(ctx, &models.RoomType{
		PropertyID: "prop-1", Name: "Double", Quantity: 4, BasePrice: 100, Currency: "EUR", MaxAdults: 2,
	})
	if err != nil {
		t.Fatalf("seed room type: %v", err)
	}
	guestID, err := db.CreateGuest(ctx, &models.Guest{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("seed guest: %v", err)
	}
	if err := db.SetSyncEnabled(ctx, "prop-1", "beds24", true); err != nil {
		t.Fatalf("enable sync: %v", err)
	}
	if _, err := db.CreateMapping(ctx, &models.EntityMapping{
		System: "beds24", EntityType: models.EntityRoomType,
		LocalID: roomTypeID, ExternalID: "R-12",
		Direction: models.DirectionBidirectional, Origin: models.MappingOriginManual,
	}); err != nil {
		t.Fatalf("seed room mapping: %v", err)
	}

	return &syncFixture{
		db:         db,
		adapter:    adapter,
		push:       NewPushService(db, adapter, "prop-1"),
		pull:       NewPullService(db, adapter, "prop-1", nil),
		roomTypeID: roomTypeID,
		guestID:    guestID,
	}
}

func (f *syncFixture) newReservation(t *testing.T) int64 {
	t.Helper()
	id, err := f.db.CreateReservation(context.Background(), &models.Reservation{
		PropertyID:    "prop-1",
		RoomTypeID:    f.roomTypeID,
		GuestID:       f.guestID,
		CheckIn:       "2026-09-10",
		CheckOut:      "2026-09-12",
		Adults:        2,
		Status:        models.ReservationStatusConfirmed,
		PaymentStatus: models.PaymentStatusDeposit,
		Source:        models.SourceDirect,
		TotalAmount:   240,
		Currency:      "EUR",
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return id
}

func TestPushReservationIdempotence(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	resID := f.newReservation(t)

	first := f.push.PushReservation(ctx, resID)
	if !first.Success {
		t.Fatalf("first push failed: %s (%s)", first.Error, first.ErrorCode)
	}
	if first.ExternalID == "" {
		t.Fatal("first push returned no external id")
	}

	second := f.push.PushReservation(ctx, resID)
	if !second.Success {
		t.Fatalf("second push failed: %s", second.Error)
	}
	if second.ExternalID != first.ExternalID {
		t.Errorf("external ids differ: %s vs %s", first.ExternalID, second.ExternalID)
	}
	if f.adapter.createCount() != 1 {
		t.Errorf("external creates = %d, want exactly 1", f.adapter.createCount())
	}
	if _, updated := f.adapter.updated[first.ExternalID]; !updated {
		t.Error("second push should have been an update")
	}
}

func TestPushUnmappedRoomType(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	unmappedRT, err := f.db.CreateRoomType(ctx, &models.RoomType{
		PropertyID: "prop-1", Name: "Suite", Quantity: 1, BasePrice: 300, Currency: "EUR", MaxAdults: 4,
	})
	if err != nil {
		t.Fatalf("seed room type: %v", err)
	}
	resID, err := f.db.CreateReservation(ctx, &models.Reservation{
		PropertyID: "prop-1", RoomTypeID: unmappedRT, GuestID: f.guestID,
		CheckIn: "2026-09-10", CheckOut: "2026-09-12", Adults: 2,
		Status:        models.ReservationStatusConfirmed,
		PaymentStatus: models.PaymentStatusUnpaid,
		Source:        models.SourceDirect, Currency: "EUR",
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	result := f.push.PushReservation(ctx, resID)
	if result.Success {
		t.Fatal("push with unmapped room type unexpectedly succeeded")
	}
	if result.ErrorCode != CodeNotMapped {
		t.Errorf("error code = %s, want %s", result.ErrorCode, CodeNotMapped)
	}
	if f.adapter.createCount() != 0 {
		t.Error("no external booking should exist for a failed push")
	}
}

func TestPushSkipsEchoedBookings(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	resID, err := f.db.CreateReservation(ctx, &models.Reservation{
		PropertyID: "prop-1", RoomTypeID: f.roomTypeID, GuestID: f.guestID,
		CheckIn: "2026-09-10", CheckOut: "2026-09-12", Adults: 2,
		Status:         models.ReservationStatusConfirmed,
		PaymentStatus:  models.PaymentStatusPaid,
		Source:         models.SourceBookingCom,
		Currency:       "EUR",
		ExternalID:     "B-777",
		ExternalSystem: "beds24",
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	result := f.push.PushReservation(ctx, resID)
	if !result.Success {
		t.Fatalf("echo push failed: %s", result.Error)
	}
	if result.ExternalID != "B-777" {
		t.Errorf("external id = %s, want the existing B-777", result.ExternalID)
	}
	if f.adapter.createCount() != 0 || len(f.adapter.updated) != 0 {
		t.Error("echoed booking must not produce any external call")
	}
}

func TestPushSyncDisabled(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	resID := f.newReservation(t)

	if err := f.db.SetSyncEnabled(ctx, "prop-1", "beds24", false); err != nil {
		t.Fatalf("disable sync: %v", err)
	}
	result := f.push.PushReservation(ctx, resID)
	if result.Success {
		t.Fatal("push succeeded with sync disabled")
	}
	if result.ErrorCode != CodeConfiguration {
		t.Errorf("error code = %s, want %s", result.ErrorCode, CodeConfiguration)
	}
}

func TestPushSurfacesClientErrors(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	resID := f.newReservation(t)

	f.adapter.createErr = &ServerError{System: "beds24", StatusCode: 503, Body: "down"}
	result := f.push.PushReservation(ctx, resID)
	if result.Success {
		t.Fatal("push succeeded despite server error")
	}
	if result.ErrorCode != CodeServer {
		t.Errorf("error code = %s, want %s", result.ErrorCode, CodeServer)
	}
}

func TestPullEndToEnd(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	external := models.ExternalBooking{
		ID:       "555",
		RoomID:   "R-12",
		CheckIn:  "2026-06-01",
		CheckOut: "2026-06-03",
		Adults:   2,
		Status:   1,
		Payment:  2,
		Amount:   200,
		Channel:  "booking.com",
		Customer: models.ExternalCustomer{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"},
	}
	f.adapter.bookings = []models.ExternalBooking{external}

	run := f.pull.SyncReservations(ctx, "2026-05-01", "2026-07-01")
	if run.ItemsCreated != 1 || run.ItemsFailed != 0 {
		t.Fatalf("run = %+v, want one created, none failed", run)
	}

	local, err := f.db.GetReservationByExternalID(ctx, "beds24", "555")
	if err != nil {
		t.Fatalf("lookup pulled reservation: %v", err)
	}
	if local.Status != models.ReservationStatusConfirmed {
		t.Errorf("status = %s, want confirmed", local.Status)
	}
	if local.RoomTypeID != f.roomTypeID {
		t.Errorf("room type = %d, want mapped %d", local.RoomTypeID, f.roomTypeID)
	}
	if local.Source != models.SourceBookingCom {
		t.Errorf("source = %s, want booking.com", local.Source)
	}
	mapping, err := f.db.GetMapping(ctx, "beds24", models.EntityReservation, local.ID)
	if err != nil {
		t.Fatalf("reservation mapping missing: %v", err)
	}
	if mapping.ExternalID != "555" {
		t.Errorf("mapping external id = %s, want 555", mapping.ExternalID)
	}

	// Second pull: the booking is now cancelled upstream.
	external.Status = 3
	f.adapter.bookings = []models.ExternalBooking{external}

	run = f.pull.SyncReservations(ctx, "2026-05-01", "2026-07-01")
	if run.ItemsUpdated != 1 || run.ItemsCreated != 0 {
		t.Fatalf("second run = %+v, want one updated, none created", run)
	}

	updated, err := f.db.GetReservationByExternalID(ctx, "beds24", "555")
	if err != nil {
		t.Fatalf("lookup after cancel: %v", err)
	}
	if updated.ID != local.ID {
		t.Errorf("duplicate reservation created: %d vs %d", updated.ID, local.ID)
	}
	if updated.Status != models.ReservationStatusCancelled {
		t.Errorf("status = %s, want cancelled", updated.Status)
	}
}

func TestPullFlagsConflictOnLocalReservations(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	resID := f.newReservation(t)

	// Push first so the reservation carries an external id but stays
	// local-origin (source direct).
	result := f.push.PushReservation(ctx, resID)
	if !result.Success {
		t.Fatalf("push: %v", result.Error)
	}

	f.adapter.bookings = []models.ExternalBooking{{
		ID:       result.ExternalID,
		RoomID:   "R-12",
		CheckIn:  "2026-09-10",
		CheckOut: "2026-09-13", // drifted upstream
		Adults:   2,
		Status:   1,
		Payment:  1,
		Amount:   240,
		Customer: models.ExternalCustomer{FirstName: "Ada", LastName: "Lovelace"},
	}}

	run := f.pull.SyncReservations(ctx, "2026-09-01", "2026-10-01")
	if run.ItemsFailed != 0 {
		t.Fatalf("run errors: %+v", run.Errors)
	}

	local, err := f.db.GetReservation(ctx, resID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if local.CheckOut != "2026-09-12" {
		t.Errorf("local check-out overwritten to %s; direct reservations need review first", local.CheckOut)
	}

	conflicts, err := f.db.ListConflicts(ctx, "beds24")
	if err != nil {
		t.Fatalf("list conflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(conflicts))
	}
	if conflicts[0].ConflictDetail == "" {
		t.Error("conflict detail (field diffs) missing")
	}
}

func TestPullUnmappedRoomIsItemError(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.adapter.bookings = []models.ExternalBooking{{
		ID: "900", RoomID: "R-unknown",
		CheckIn: "2026-06-01", CheckOut: "2026-06-02",
		Adults: 1, Status: 1,
		Customer: models.ExternalCustomer{FirstName: "X", LastName: "Y"},
	}}

	run := f.pull.SyncReservations(ctx, "2026-05-01", "2026-07-01")
	if run.ItemsFailed != 1 {
		t.Fatalf("run = %+v, want one failed item", run)
	}
	if run.Errors[0].ExternalID != "900" {
		t.Errorf("error external id = %s, want 900", run.Errors[0].ExternalID)
	}
	if run.Errors[0].Code != CodeNotMapped {
		t.Errorf("error code = %s, want %s", run.Errors[0].Code, CodeNotMapped)
	}
}

func TestSyncRoomsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.adapter.rooms = []models.ExternalRoom{
		{ID: "u1", Type: "twin", Price: 98, Floor: 1},
		{ID: "u2", Type: "twin", Price: 102, Floor: 1},
		{ID: "u3", Type: "suite", Price: 250, Floor: 3},
	}

	first := f.pull.SyncRooms(ctx)
	if first.ItemsCreated != 2 || first.ItemsFailed != 0 {
		t.Fatalf("first run = %+v, want 2 created", first)
	}

	second := f.pull.SyncRooms(ctx)
	if second.ItemsCreated != 0 {
		t.Errorf("second run created %d, want 0 (idempotent)", second.ItemsCreated)
	}
	if second.ItemsUpdated != 2 {
		t.Errorf("second run updated %d, want 2", second.ItemsUpdated)
	}

	types, err := f.db.ListRoomTypes(ctx, "prop-1")
	if err != nil {
		t.Fatalf("list room types: %v", err)
	}
	// The seeded "Double" plus the two synthesized groups.
	if len(types) != 3 {
		t.Errorf("room types = %d, want 3", len(types))
	}
}

func TestBookingOnSecondaryGroupedUnitResolves(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	// Two twin units collapse into one local type. Upstream bookings
	// reference individual units, so either unit id must resolve.
	f.adapter.rooms = []models.ExternalRoom{
		{ID: "u1", Type: "twin", Price: 98, Floor: 1},
		{ID: "u2", Type: "twin", Price: 102, Floor: 1},
	}
	if run := f.pull.SyncRooms(ctx); run.ItemsCreated != 1 || run.ItemsFailed != 0 {
		t.Fatalf("sync rooms = %+v, want one group created", run)
	}

	f.adapter.bookings = []models.ExternalBooking{{
		ID: "910", RoomID: "u2",
		CheckIn: "2026-06-01", CheckOut: "2026-06-02",
		Adults: 1, Status: 1,
		Customer: models.ExternalCustomer{FirstName: "Lin", LastName: "Chu"},
	}}

	run := f.pull.SyncReservations(ctx, "2026-05-01", "2026-07-01")
	if run.ItemsCreated != 1 || run.ItemsFailed != 0 {
		t.Fatalf("run = %+v, want one created, none failed", run)
	}

	local, err := f.db.GetReservationByExternalID(ctx, "beds24", "910")
	if err != nil {
		t.Fatalf("lookup pulled reservation: %v", err)
	}
	// Push still resolves the grouped type to a single canonical unit,
	// the first one recorded for the group.
	canonical, err := f.db.GetMapping(ctx, "beds24", models.EntityRoomType, local.RoomTypeID)
	if err != nil {
		t.Fatalf("room type mapping: %v", err)
	}
	if canonical.ExternalID != "u1" {
		t.Errorf("canonical external unit = %s, want u1", canonical.ExternalID)
	}
}

func TestFetchRoomsFallbackChain(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.adapter.roomsErr = &ValidationError{System: "beds24", StatusCode: 404, Body: "no such endpoint"}
	f.adapter.rooms = []models.ExternalRoom{{ID: "u1", Type: "double", Price: 100}}

	rooms, err := f.pull.FetchRooms(ctx)
	if err != nil {
		t.Fatalf("fetch rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("rooms = %d, want 1 from the property endpoint", len(rooms))
	}

	t.Run("derives from bookings as last resort", func(t *testing.T) {
		f.adapter.unitsErr = &ValidationError{System: "beds24", StatusCode: 404, Body: "nope"}
		f.adapter.bookings = []models.ExternalBooking{
			{ID: "1", RoomID: "rA", CheckIn: "2026-06-01", CheckOut: "2026-06-02", Adults: 2, Status: 1},
			{ID: "2", RoomID: "rA", CheckIn: "2026-06-05", CheckOut: "2026-06-07", Adults: 2, Status: 1},
			{ID: "3", RoomID: "rB", CheckIn: "2026-06-01", CheckOut: "2026-06-03", Adults: 1, Status: 1},
		}

		rooms, err := f.pull.FetchRooms(ctx)
		if err != nil {
			t.Fatalf("fetch rooms: %v", err)
		}
		if len(rooms) != 2 {
			t.Errorf("derived rooms = %d, want 2 distinct references", len(rooms))
		}
	})

	t.Run("transport failures abort the chain", func(t *testing.T) {
		f.adapter.roomsErr = &ServerError{System: "beds24", StatusCode: 500, Body: "down"}
		_, err := f.pull.FetchRooms(ctx)
		var srvErr *ServerError
		if !errors.As(err, &srvErr) {
			t.Fatalf("err = %v, want the server error to propagate", err)
		}
	})
}

func TestOrchestratorFullSync(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	orch := NewOrchestrator(f.db, f.pull, "beds24", 30)

	f.adapter.rooms = []models.ExternalRoom{{ID: "u1", Type: "twin", Price: 100, Floor: 1}}
	f.adapter.bookings = []models.ExternalBooking{{
		ID: "700", RoomID: "R-12",
		CheckIn: "2026-06-01", CheckOut: "2026-06-02",
		Adults: 2, Status: 1,
		Customer: models.ExternalCustomer{FirstName: "Grace", LastName: "Hopper"},
	}}

	run, err := orch.RunFullSync(ctx)
	if err != nil {
		t.Fatalf("full sync: %v", err)
	}
	if run.Status != models.SyncRunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if run.ItemsCreated != 2 { // one room type + one reservation
		t.Errorf("created = %d, want 2", run.ItemsCreated)
	}

	status, err := orch.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != models.SyncRunCompleted {
		t.Errorf("latest status = %s, want completed", status.Status)
	}
}

func TestOrchestratorSingleActiveRun(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	orch := NewOrchestrator(f.db, f.pull, "beds24", 30)

	// Occupy the run slot directly, as a concurrent orchestrator would.
	if _, err := f.db.StartRun(ctx, "beds24", "full"); err != nil {
		t.Fatalf("occupy run slot: %v", err)
	}

	_, err := orch.RunFullSync(ctx)
	if !errors.Is(err, database.ErrRunActive) {
		t.Fatalf("err = %v, want ErrRunActive", err)
	}
}

func TestOrchestratorRecordsPhaseErrors(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	orch := NewOrchestrator(f.db, f.pull, "beds24", 30)

	// Rooms fail hard; reservations still run.
	f.adapter.roomsErr = &ServerError{System: "beds24", StatusCode: 500, Body: "down"}
	f.adapter.unitsErr = &ServerError{System: "beds24", StatusCode: 500, Body: "down"}
	f.adapter.bookings = []models.ExternalBooking{{
		ID: "701", RoomID: "R-12",
		CheckIn: "2026-06-01", CheckOut: "2026-06-02",
		Adults: 2, Status: 1,
		Customer: models.ExternalCustomer{FirstName: "A", LastName: "B"},
	}}

	run, err := orch.RunFullSync(ctx)
	if err != nil {
		t.Fatalf("full sync: %v", err)
	}
	if run.ItemsCreated != 1 {
		t.Errorf("created = %d, want the reservation despite the room failure", run.ItemsCreated)
	}
	if len(run.Errors) == 0 {
		t.Error("room phase failure missing from the aggregate error list")
	}
	if run.Status != models.SyncRunCompleted {
		t.Errorf("status = %s, want completed (partial success)", run.Status)
	}
}

func TestManagerResolveConflict(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	m := &Manager{
		db: f.db,
		systems: map[string]*System{
			"beds24": {Adapter: f.adapter, Push: f.push, Pull: f.pull,
				Orchestrator: NewOrchestrator(f.db, f.pull, "beds24", 30)},
		},
	}

	resID := f.newReservation(t)
	result := f.push.PushReservation(ctx, resID)
	if !result.Success {
		t.Fatalf("push: %s", result.Error)
	}

	f.adapter.bookings = []models.ExternalBooking{{
		ID: result.ExternalID, RoomID: "R-12",
		CheckIn: "2026-09-10", CheckOut: "2026-09-14",
		Adults: 2, Status: 1, Payment: 1, Amount: 240,
		Customer: models.ExternalCustomer{FirstName: "Ada", LastName: "Lovelace"},
	}}
	f.pull.SyncReservations(ctx, "2026-09-01", "2026-10-01")

	conflicts, err := m.ListConflicts(ctx, "beds24")
	if err != nil {
		t.Fatalf("list conflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(conflicts))
	}

	if err := m.ResolveConflict(ctx, "beds24", conflicts[0].ID, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	conflicts, _ = m.ListConflicts(ctx, "beds24")
	if len(conflicts) != 0 {
		t.Errorf("conflicts after resolve = %d, want 0", len(conflicts))
	}
	// keepLocal pushed the local state back out.
	if _, pushed := f.adapter.updated[result.ExternalID]; !pushed {
		t.Error("keep-local resolution should re-push the reservation")
	}
}
