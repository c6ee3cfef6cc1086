// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/channel"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// ReservationEvent is the payload for outbound reservation work. It carries
// only the local ID: the consumer re-reads the reservation at processing
// time so a message delayed behind retries never pushes stale fields.
type ReservationEvent struct {
	ReservationID int64 `json:"reservation_id"`
}

// AvailabilityEvent is the payload for an outbound availability push.
type AvailabilityEvent struct {
	Updates []channel.AvailabilityUpdate `json:"updates"`
}

// RateEvent is the payload for an outbound rate push.
type RateEvent struct {
	Updates []channel.RateUpdate `json:"updates"`
}

// SyncPublisher is the typed facade the rest of the engine queues work
// through. It owns topic selection and priority assignment so callers never
// hand-build envelopes.
type SyncPublisher struct {
	publisher *Publisher
}

// NewSyncPublisher wraps a publisher with the typed queue operations.
func NewSyncPublisher(pub *Publisher) (*SyncPublisher, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	return &SyncPublisher{publisher: pub}, nil
}

// QueueReservationCreate queues a push of a new local reservation.
func (p *SyncPublisher) QueueReservationCreate(ctx context.Context, system string, reservationID int64) error {
	return p.queueReservation(ctx, system, EventReservationCreate, reservationID)
}

// QueueReservationUpdate queues a push of changed reservation fields.
func (p *SyncPublisher) QueueReservationUpdate(ctx context.Context, system string, reservationID int64) error {
	return p.queueReservation(ctx, system, EventReservationUpdate, reservationID)
}

// QueueReservationCancel queues a cancellation push. Highest priority: the
// external system keeps selling the room until this lands.
func (p *SyncPublisher) QueueReservationCancel(ctx context.Context, system string, reservationID int64) error {
	return p.queueReservation(ctx, system, EventReservationCancel, reservationID)
}

func (p *SyncPublisher) queueReservation(ctx context.Context, system, eventType string, reservationID int64) error {
	payload, err := json.Marshal(ReservationEvent{ReservationID: reservationID})
	if err != nil {
		return fmt.Errorf("marshal reservation event: %w", err)
	}

	msg := NewSyncMessage(system, eventType, EventPriority(eventType), payload)
	return p.publisher.Publish(ctx, OutboundTopic(system, eventType), msg)
}

// QueueAvailabilityUpdate queues an availability push toward a system.
func (p *SyncPublisher) QueueAvailabilityUpdate(ctx context.Context, system string, updates []channel.AvailabilityUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	payload, err := json.Marshal(AvailabilityEvent{Updates: updates})
	if err != nil {
		return fmt.Errorf("marshal availability event: %w", err)
	}

	msg := NewSyncMessage(system, EventAvailabilityPush, EventPriority(EventAvailabilityPush), payload)
	return p.publisher.Publish(ctx, OutboundTopic(system, EventAvailabilityPush), msg)
}

// QueueRateUpdate queues a rate push toward a system.
func (p *SyncPublisher) QueueRateUpdate(ctx context.Context, system string, updates []channel.RateUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	payload, err := json.Marshal(RateEvent{Updates: updates})
	if err != nil {
		return fmt.Errorf("marshal rate event: %w", err)
	}

	msg := NewSyncMessage(system, EventRatePush, EventPriority(EventRatePush), payload)
	return p.publisher.Publish(ctx, OutboundTopic(system, EventRatePush), msg)
}

// QueueInboundBooking queues a booking received from an external system,
// typically via webhook, for asynchronous ingestion.
func (p *SyncPublisher) QueueInboundBooking(ctx context.Context, system string, booking *models.ExternalBooking) error {
	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marshal inbound booking: %w", err)
	}

	msg := NewSyncMessage(system, EventBookingInbound, PriorityDefault, payload)
	return p.publisher.Publish(ctx, InboundTopic(system), msg)
}
