// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/metrics"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// PullService ingests external state into the local datastore: room
// discovery with a fallback chain, booking ingestion with conflict
// flagging.
type PullService struct {
	db         *database.DB
	adapter    Adapter
	grouper    RoomGrouper
	propertyID string
}

// NewPullService builds the pull service for one external system. A nil
// grouper gets the default composite-key heuristic.
func NewPullService(db *database.DB, adapter Adapter, propertyID string, grouper RoomGrouper) *PullService {
	if grouper == nil {
		grouper = NewCompositeKeyGrouper()
	}
	return &PullService{db: db, adapter: adapter, grouper: grouper, propertyID: propertyID}
}

// FetchRooms discovers external rooms via the fallback chain: dedicated
// rooms endpoint, then the property endpoint with unit expansion, then
// derivation from a wide-date-range booking list. APIs differ in what they
// support; only transport-level failures abort the chain.
func (s *PullService) FetchRooms(ctx context.Context) ([]models.ExternalRoom, error) {
	system := s.adapter.System()

	rooms, err := s.adapter.ListRooms(ctx)
	if err == nil && len(rooms) > 0 {
		return rooms, nil
	}
	if err != nil && !isFallbackEligible(err) {
		return nil, err
	}
	logging.Debug().Str("system", system).Err(err).
		Msg("rooms endpoint unavailable, trying property endpoint")

	rooms, err = s.adapter.ListPropertyUnits(ctx)
	if err == nil && len(rooms) > 0 {
		return rooms, nil
	}
	if err != nil && !isFallbackEligible(err) {
		return nil, err
	}
	logging.Debug().Str("system", system).Err(err).
		Msg("property endpoint unavailable, deriving rooms from bookings")

	return s.deriveRoomsFromBookings(ctx)
}

// isFallbackEligible reports whether a room-discovery failure should fall
// through to the next source. Open circuits and auth failures would fail the
// whole chain identically, so they abort instead.
func isFallbackEligible(err error) bool {
	switch ErrorCode(err) {
	case CodeValidation, CodeShape, CodeNotMapped:
		return true
	default:
		return false
	}
}

// deriveRoomsFromBookings is the last-resort source: scan a year-wide
// booking window and synthesize one unit per distinct room reference.
func (s *PullService) deriveRoomsFromBookings(ctx context.Context) ([]models.ExternalRoom, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, -6, 0).Format("2006-01-02")
	to := now.AddDate(0, 6, 0).Format("2006-01-02")

	bookings, err := s.adapter.ListBookings(ctx, from, to)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var rooms []models.ExternalRoom
	for _, b := range bookings {
		ref := b.RoomID
		if ref == "" {
			ref = b.UnitID
		}
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		rooms = append(rooms, models.ExternalRoom{
			ID:        ref,
			Name:      "Room " + ref,
			Type:      "room",
			MaxGuests: b.Adults + b.Children,
		})
	}
	if len(rooms) == 0 {
		return nil, &ShapeError{System: s.adapter.System(),
			Reason: "no rooms discoverable from any source", Raw: ""}
	}
	return rooms, nil
}

// SyncRooms pulls external rooms, groups them into room types, and upserts
// them locally. Idempotent: rerunning against unchanged external state
// updates quantities and prices in place and creates nothing new.
func (s *PullService) SyncRooms(ctx context.Context) *models.SyncRun {
	system := s.adapter.System()
	run := &models.SyncRun{System: system, RunType: "rooms"}

	rooms, err := s.FetchRooms(ctx)
	if err != nil {
		run.ItemsFailed++
		run.Errors = append(run.Errors, models.SyncItemError{
			EntityType: models.EntityRoomType,
			Message:    err.Error(),
			Code:       ErrorCode(err),
		})
		return run
	}

	for _, group := range s.grouper.Group(rooms) {
		run.ItemsProcessed++
		created, err := s.upsertRoomGroup(ctx, group)
		if err != nil {
			run.ItemsFailed++
			run.Errors = append(run.Errors, models.SyncItemError{
				ExternalID: strings.Join(group.UnitIDs, ","),
				EntityType: models.EntityRoomType,
				Message:    err.Error(),
				Code:       ErrorCode(err),
			})
			continue
		}
		if created {
			run.ItemsCreated++
		} else {
			run.ItemsUpdated++
		}
	}
	return run
}

// upsertRoomGroup creates or refreshes one room type from a group and keeps
// its mapping and match suggestions current. Returns whether a row was
// created.
func (s *PullService) upsertRoomGroup(ctx context.Context, group RoomGroup) (bool, error) {
	unitIDs := strings.Join(group.UnitIDs, ",")

	existing, err := s.db.FindRoomTypeByName(ctx, s.propertyID, group.Name)
	switch {
	case err == nil:
		if err := s.db.UpdateRoomTypeInventory(ctx, existing.ID, group.Quantity, group.Price, unitIDs); err != nil {
			return false, err
		}
		s.ensureRoomMapping(ctx, existing.ID, group)
		return false, nil

	case errors.Is(err, database.ErrNotFound):
		rt := &models.RoomType{
			PropertyID:      s.propertyID,
			Name:            group.Name,
			Quantity:        group.Quantity,
			BasePrice:       group.Price,
			MaxAdults:       group.MaxGuests,
			Floor:           group.Floor,
			Features:        strings.Join(group.Features, ","),
			ExternalUnitIDs: unitIDs,
		}
		id, err := s.db.CreateRoomType(ctx, rt)
		if err != nil {
			return false, err
		}
		s.ensureRoomMapping(ctx, id, group)
		s.suggestSimilarRoomTypes(ctx, id, group)
		return true, nil

	default:
		return false, err
	}
}

// ensureRoomMapping records a room-type mapping for every unit in the group.
// Bookings reference individual units, so each external unit id must resolve
// to the grouped local type, not just the primary. Already-live mappings are
// left alone.
func (s *PullService) ensureRoomMapping(ctx context.Context, localID int64, group RoomGroup) {
	for _, unitID := range group.UnitIDs {
		_, err := s.db.CreateMapping(ctx, &models.EntityMapping{
			System:     s.adapter.System(),
			EntityType: models.EntityRoomType,
			LocalID:    localID,
			ExternalID: unitID,
			Direction:  models.DirectionBidirectional,
			Origin:     models.MappingOriginSync,
		})
		if err != nil && !errors.Is(err, database.ErrAlreadyMapped) {
			logging.Error().
				Str("system", s.adapter.System()).
				Str("external_unit", unitID).
				Int64("room_type", localID).
				Err(err).
				Msg("failed to record room type mapping")
		}
	}
}

// suggestSimilarRoomTypes records match suggestions between the new room
// type and existing unmapped local types whose names overlap, for operator
// review.
func (s *PullService) suggestSimilarRoomTypes(ctx context.Context, newID int64, group RoomGroup) {
	if len(group.UnitIDs) == 0 {
		return
	}
	locals, err := s.db.ListRoomTypes(ctx, s.propertyID)
	if err != nil {
		return
	}
	for _, local := range locals {
		if local.ID == newID {
			continue
		}
		score := nameSimilarity(local.Name, group.Name)
		if score < 0.5 {
			continue
		}
		suggestion := &models.MappingSuggestion{
			System:       s.adapter.System(),
			LocalID:      local.ID,
			ExternalID:   group.UnitIDs[0],
			ExternalName: group.Name,
			Score:        score,
		}
		if err := s.db.UpsertSuggestion(ctx, suggestion); err != nil {
			logging.Debug().Err(err).Msg("failed to record mapping suggestion")
		}
	}
}

// nameSimilarity scores two room-type names in [0,1] by token overlap.
func nameSimilarity(a, b string) float64 {
	tokensA := strings.Fields(strings.ToLower(a))
	tokensB := strings.Fields(strings.ToLower(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}
	shared := 0
	for _, t := range tokensA {
		if _, hit := setB[t]; hit {
			shared++
		}
	}
	union := len(tokensA) + len(tokensB) - shared
	return float64(shared) / float64(union)
}

// SyncReservations pulls external bookings in a date window and upserts
// them. Known bookings are updated in place (the external system is the
// authority for bookings it originated); local-origin reservations that
// drifted get their mapping flagged for manual review instead of being
// overwritten.
func (s *PullService) SyncReservations(ctx context.Context, from, to string) *models.SyncRun {
	system := s.adapter.System()
	run := &models.SyncRun{System: system, RunType: "reservations"}

	bookings, err := s.adapter.ListBookings(ctx, from, to)
	if err != nil {
		run.ItemsFailed++
		run.Errors = append(run.Errors, models.SyncItemError{
			EntityType: models.EntityReservation,
			Message:    err.Error(),
			Code:       ErrorCode(err),
		})
		return run
	}

	for i := range bookings {
		booking := &bookings[i]
		run.ItemsProcessed++

		created, err := s.IngestBooking(ctx, booking)
		if err != nil {
			run.ItemsFailed++
			run.Errors = append(run.Errors, models.SyncItemError{
				ExternalID: booking.ID,
				EntityType: models.EntityReservation,
				Message:    err.Error(),
				Code:       ErrorCode(err),
			})
			metrics.RecordSyncResult(system, string(models.SyncTypePull), false)
			continue
		}
		if created {
			run.ItemsCreated++
		} else {
			run.ItemsUpdated++
		}
		metrics.RecordSyncResult(system, string(models.SyncTypePull), true)
	}
	return run
}

// IngestBooking upserts one external booking. It is shared by the bulk
// reservation sync and the webhook-driven inbound consumer. Returns whether
// a local reservation was created.
func (s *PullService) IngestBooking(ctx context.Context, booking *models.ExternalBooking) (bool, error) {
	system := s.adapter.System()

	normalized, err := NormalizeBooking(booking)
	if err != nil {
		return false, &ValidationError{System: system, Body: err.Error()}
	}

	existing, err := s.db.GetReservationByExternalID(ctx, system, normalized.ExternalID)
	switch {
	case err == nil:
		return false, s.updateFromExternal(ctx, existing, normalized)
	case errors.Is(err, database.ErrNotFound):
		return true, s.createFromExternal(ctx, normalized)
	default:
		return false, err
	}
}

// updateFromExternal applies external changes to a known reservation.
func (s *PullService) updateFromExternal(ctx context.Context, local *models.Reservation, external *models.NormalizedBooking) error {
	system := s.adapter.System()

	diffs := HasBookingChanged(local, external)
	if len(diffs) == 0 {
		return nil
	}
	for _, d := range diffs {
		metrics.SyncConflicts.WithLabelValues(system, d.Field).Inc()
	}

	// Bookings the external system originated are its to change. Local
	// (direct) reservations that drifted need a human decision.
	if local.Source == models.SourceDirect {
		return s.flagConflict(ctx, local, diffs)
	}

	local.Status = external.Status
	local.PaymentStatus = external.PaymentStatus
	local.CheckIn = external.CheckIn
	local.CheckOut = external.CheckOut
	local.Adults = external.Adults
	local.Children = external.Children
	local.TotalAmount = external.TotalAmount
	if external.Notes != "" {
		local.Notes = external.Notes
	}
	return s.db.UpdateReservation(ctx, local)
}

func (s *PullService) flagConflict(ctx context.Context, local *models.Reservation, diffs []models.FieldDiff) error {
	system := s.adapter.System()

	mapping, err := s.db.GetMapping(ctx, system, models.EntityReservation, local.ID)
	if errors.Is(err, database.ErrNotFound) {
		mapping = &models.EntityMapping{
			System:     system,
			EntityType: models.EntityReservation,
			LocalID:    local.ID,
			ExternalID: local.ExternalID,
			Direction:  models.DirectionBidirectional,
			Origin:     models.MappingOriginSync,
		}
		if _, err := s.db.CreateMapping(ctx, mapping); err != nil && !errors.Is(err, database.ErrAlreadyMapped) {
			return err
		}
		mapping, err = s.db.GetMapping(ctx, system, models.EntityReservation, local.ID)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	detail, err := encodeDiffs(diffs)
	if err != nil {
		return err
	}
	logging.Warn().
		Str("system", system).
		Int64("reservation", local.ID).
		Int("fields", len(diffs)).
		Msg("conflict detected between local and external booking")
	return s.db.SetMappingConflict(ctx, mapping.ID, detail)
}

// createFromExternal materializes a new local reservation from an external
// booking: guest upsert, room-type resolution via mapping, reservation
// insert with the external id already attached, mapping record.
func (s *PullService) createFromExternal(ctx context.Context, external *models.NormalizedBooking) error {
	system := s.adapter.System()

	roomTypeID, err := s.resolveRoomType(ctx, external.ExternalRoomID)
	if err != nil {
		return err
	}

	guest := external.Guest
	guestID, err := s.db.FindOrCreateGuest(ctx, &guest)
	if err != nil {
		return err
	}

	reservation := &models.Reservation{
		PropertyID:     s.propertyID,
		RoomTypeID:     roomTypeID,
		GuestID:        guestID,
		CheckIn:        external.CheckIn,
		CheckOut:       external.CheckOut,
		Adults:         external.Adults,
		Children:       external.Children,
		Status:         external.Status,
		PaymentStatus:  external.PaymentStatus,
		Source:         external.Source,
		TotalAmount:    external.TotalAmount,
		Currency:       external.Currency,
		Notes:          external.Notes,
		ExternalID:     external.ExternalID,
		ExternalSystem: system,
	}
	reservationID, err := s.db.CreateReservation(ctx, reservation)
	if err != nil {
		if database.IsConstraintViolation(err) {
			// A concurrent ingest of the same booking won; nothing to do.
			return nil
		}
		return err
	}

	_, err = s.db.CreateMapping(ctx, &models.EntityMapping{
		System:     system,
		EntityType: models.EntityReservation,
		LocalID:    reservationID,
		ExternalID: external.ExternalID,
		Direction:  models.DirectionInbound,
		Origin:     models.MappingOriginSync,
	})
	if err != nil && !errors.Is(err, database.ErrAlreadyMapped) {
		return err
	}
	return nil
}

// resolveRoomType maps an external room reference to a local room type.
func (s *PullService) resolveRoomType(ctx context.Context, externalRoomID string) (int64, error) {
	system := s.adapter.System()
	if externalRoomID == "" {
		return 0, &ValidationError{System: system, Body: "booking carries no room reference"}
	}
	mapping, err := s.db.GetMappingByExternalID(ctx, system, models.EntityRoomType, externalRoomID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, &NotMappedError{
				System:     system,
				EntityType: models.EntityRoomType,
				ExternalID: externalRoomID,
			}
		}
		return 0, err
	}
	return mapping.LocalID, nil
}
