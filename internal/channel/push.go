// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/metrics"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// PushService sends local reservation changes to one external system.
// Every operation returns a SyncResult, never a raw error: failures carry a
// message and a stable error code for the caller to act on.
type PushService struct {
	db         *database.DB
	adapter    Adapter
	propertyID string
}

// NewPushService builds the push service for one external system.
func NewPushService(db *database.DB, adapter Adapter, propertyID string) *PushService {
	return &PushService{db: db, adapter: adapter, propertyID: propertyID}
}

// PushReservation sends one reservation outward. Idempotence: a reservation
// that already carries an external id for this system is updated, not
// re-created; concurrent first pushes race on the datastore's conditional
// external-id write, and the loser adopts the winner's id.
func (s *PushService) PushReservation(ctx context.Context, reservationID int64) models.SyncResult {
	system := s.adapter.System()
	entityID := fmt.Sprintf("%d", reservationID)

	result := s.pushReservation(ctx, reservationID)
	metrics.RecordSyncResult(system, string(models.SyncTypePush), result.Success)
	if !result.Success {
		logging.Warn().
			Str("system", system).
			Str("reservation", entityID).
			Str("code", result.ErrorCode).
			Str("error", result.Error).
			Msg("reservation push failed")
	}
	return result
}

func (s *PushService) pushReservation(ctx context.Context, reservationID int64) models.SyncResult {
	system := s.adapter.System()
	entityID := fmt.Sprintf("%d", reservationID)

	fail := func(err error) models.SyncResult {
		return models.FailureResult(models.SyncTypePush, models.EntityReservation, entityID,
			err.Error(), ErrorCode(err))
	}

	enabled, err := s.db.IsSyncEnabled(ctx, s.propertyID, system)
	if err != nil {
		return fail(err)
	}
	if !enabled {
		return fail(&ConfigurationError{System: system, Reason: "sync is disabled for this property"})
	}

	reservation, err := s.db.GetReservation(ctx, reservationID)
	if err != nil {
		return fail(err)
	}

	// A booking this system sent us must not be echoed back to it.
	if reservation.OriginatedFrom(system) {
		return models.SuccessResult(models.SyncTypePush, models.EntityReservation,
			entityID, reservation.ExternalID)
	}

	payload, err := s.buildPayload(ctx, reservation)
	if err != nil {
		return fail(err)
	}

	// Prior external id means update; otherwise create and persist the id.
	if reservation.ExternalID != "" && reservation.ExternalSystem == system {
		if err := s.adapter.UpdateBooking(ctx, reservation.ExternalID, payload); err != nil {
			return fail(err)
		}
		s.touchReservationMapping(ctx, reservation)
		return models.SuccessResult(models.SyncTypePush, models.EntityReservation,
			entityID, reservation.ExternalID)
	}

	externalID, err := s.adapter.CreateBooking(ctx, payload)
	if err != nil {
		return fail(err)
	}

	if err := s.db.SetReservationExternalID(ctx, reservationID, system, externalID); err != nil {
		if errors.Is(err, database.ErrAlreadySynced) {
			// A concurrent push won the conditional write. The stored id is
			// authoritative; the booking we just created is the duplicate
			// and gets cancelled upstream.
			if cancelErr := s.adapter.CancelBooking(ctx, externalID); cancelErr != nil {
				logging.Error().
					Str("system", system).
					Str("external_id", externalID).
					Err(cancelErr).
					Msg("failed to cancel duplicate external booking")
			}
			current, getErr := s.db.GetReservation(ctx, reservationID)
			if getErr != nil {
				return fail(getErr)
			}
			return models.SuccessResult(models.SyncTypePush, models.EntityReservation,
				entityID, current.ExternalID)
		}
		return fail(err)
	}

	s.recordReservationMapping(ctx, reservationID, externalID)
	return models.SuccessResult(models.SyncTypePush, models.EntityReservation, entityID, externalID)
}

// CancelReservation propagates a local cancellation outward. A reservation
// never pushed to this system is a no-op success.
func (s *PushService) CancelReservation(ctx context.Context, reservationID int64) models.SyncResult {
	system := s.adapter.System()
	entityID := fmt.Sprintf("%d", reservationID)

	fail := func(err error) models.SyncResult {
		return models.FailureResult(models.SyncTypePush, models.EntityReservation, entityID,
			err.Error(), ErrorCode(err))
	}

	reservation, err := s.db.GetReservation(ctx, reservationID)
	if err != nil {
		return fail(err)
	}
	if reservation.ExternalID == "" || reservation.ExternalSystem != system {
		return models.SuccessResult(models.SyncTypePush, models.EntityReservation, entityID, "")
	}
	if err := s.adapter.CancelBooking(ctx, reservation.ExternalID); err != nil {
		result := fail(err)
		metrics.RecordSyncResult(system, string(models.SyncTypePush), false)
		return result
	}
	metrics.RecordSyncResult(system, string(models.SyncTypePush), true)
	return models.SuccessResult(models.SyncTypePush, models.EntityReservation,
		entityID, reservation.ExternalID)
}

// buildPayload translates the reservation and its guest into the external
// vocabulary. The room-type mapping is mandatory: an unmapped room type is a
// specific, operator-actionable failure.
func (s *PushService) buildPayload(ctx context.Context, r *models.Reservation) (*BookingPayload, error) {
	system := s.adapter.System()

	mapping, err := s.db.GetMapping(ctx, system, models.EntityRoomType, r.RoomTypeID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotMappedError{System: system, EntityType: models.EntityRoomType, LocalID: r.RoomTypeID}
		}
		return nil, err
	}

	guest, err := s.db.GetGuest(ctx, r.GuestID)
	if err != nil {
		return nil, err
	}

	return &BookingPayload{
		RoomID:         mapping.ExternalID,
		CheckIn:        r.CheckIn,
		CheckOut:       r.CheckOut,
		Adults:         r.Adults,
		Children:       r.Children,
		Status:         MapLocalStatus(r.Status),
		Payment:        MapLocalPayment(r.PaymentStatus),
		Amount:         r.TotalAmount,
		Currency:       r.Currency,
		Reference:      fmt.Sprintf("lodgekeeper-%d", r.ID),
		Notes:          r.Notes,
		GuestFirstName: guest.FirstName,
		GuestLastName:  guest.LastName,
		GuestEmail:     guest.Email,
		GuestPhone:     guest.Phone,
		GuestCountry:   guest.Country,
	}, nil
}

// recordReservationMapping persists the reservation mapping after a create.
// Mapping failures are logged, not surfaced: the reservation row already
// carries the external id, which is the primary link.
func (s *PushService) recordReservationMapping(ctx context.Context, reservationID int64, externalID string) {
	_, err := s.db.CreateMapping(ctx, &models.EntityMapping{
		System:     s.adapter.System(),
		EntityType: models.EntityReservation,
		LocalID:    reservationID,
		ExternalID: externalID,
		Direction:  models.DirectionOutbound,
		Origin:     models.MappingOriginSync,
	})
	if err != nil && !errors.Is(err, database.ErrAlreadyMapped) {
		logging.Error().
			Str("system", s.adapter.System()).
			Int64("reservation", reservationID).
			Err(err).
			Msg("failed to record reservation mapping")
	}
}

func (s *PushService) touchReservationMapping(ctx context.Context, r *models.Reservation) {
	mapping, err := s.db.GetMapping(ctx, s.adapter.System(), models.EntityReservation, r.ID)
	if err != nil {
		return
	}
	if err := s.db.TouchMappingSynced(ctx, mapping.ID); err != nil {
		logging.Debug().Err(err).Int64("mapping", mapping.ID).Msg("failed to touch mapping")
	}
}
