// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/channel"
	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// ReservationPusher is the outbound surface the consumer drives. Satisfied
// by channel.PushService.
type ReservationPusher interface {
	PushReservation(ctx context.Context, reservationID int64) models.SyncResult
	CancelReservation(ctx context.Context, reservationID int64) models.SyncResult
}

// BookingIngester is the inbound surface the consumer drives. Satisfied by
// channel.PullService.
type BookingIngester interface {
	IngestBooking(ctx context.Context, booking *models.ExternalBooking) (bool, error)
}

// RatePusher covers the availability and rate operations of an adapter.
type RatePusher interface {
	PushAvailability(ctx context.Context, updates []channel.AvailabilityUpdate) error
	PushRates(ctx context.Context, updates []channel.RateUpdate) error
}

// NewOutboundConsumer builds the worker that drains one system's outbound
// queue, dispatching each event type to the matching push operation.
func NewOutboundConsumer(system string, cfg ConsumerConfig, sub message.Subscriber, pub *Publisher, pusher ReservationPusher, rates RatePusher) (*Consumer, error) {
	handler := outboundHandler(pusher, rates)
	return NewConsumer(
		system+"-outbound",
		OutboundSubjects(system),
		system,
		"outbound",
		sub, pub, cfg.MaxRetries, handler,
	)
}

// NewInboundConsumer builds the worker that drains one system's inbound
// queue, ingesting each received booking into local state.
func NewInboundConsumer(system string, cfg ConsumerConfig, sub message.Subscriber, pub *Publisher, ingester BookingIngester) (*Consumer, error) {
	handler := inboundHandler(ingester)
	return NewConsumer(
		system+"-inbound",
		InboundSubjects(system),
		system,
		"inbound",
		sub, pub, cfg.MaxRetries, handler,
	)
}

// ConsumerConfig carries the worker policy knobs.
type ConsumerConfig struct {
	MaxRetries int
}

func outboundHandler(pusher ReservationPusher, rates RatePusher) Handler {
	return func(ctx context.Context, msg *SyncMessage) error {
		switch msg.EventType {
		case EventReservationCreate, EventReservationUpdate:
			ev, err := decodeReservation(msg)
			if err != nil {
				return err
			}
			return resultToError(pusher.PushReservation(ctx, ev.ReservationID))

		case EventReservationCancel:
			ev, err := decodeReservation(msg)
			if err != nil {
				return err
			}
			return resultToError(pusher.CancelReservation(ctx, ev.ReservationID))

		case EventAvailabilityPush:
			var ev AvailabilityEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				return &PermanentError{Message: "decode availability event", Cause: err}
			}
			return classifyPushError(rates.PushAvailability(ctx, ev.Updates))

		case EventRatePush:
			var ev RateEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				return &PermanentError{Message: "decode rate event", Cause: err}
			}
			return classifyPushError(rates.PushRates(ctx, ev.Updates))

		default:
			return &PermanentError{Message: "unknown outbound event type " + msg.EventType}
		}
	}
}

func inboundHandler(ingester BookingIngester) Handler {
	return func(ctx context.Context, msg *SyncMessage) error {
		if msg.EventType != EventBookingInbound {
			return &PermanentError{Message: "unknown inbound event type " + msg.EventType}
		}

		var booking models.ExternalBooking
		if err := json.Unmarshal(msg.Payload, &booking); err != nil {
			return &PermanentError{Message: "decode inbound booking", Cause: err}
		}
		if booking.ID == "" {
			return &PermanentError{Message: "inbound booking missing id"}
		}

		_, err := ingester.IngestBooking(ctx, &booking)
		return classifyPushError(err)
	}
}

func decodeReservation(msg *SyncMessage) (*ReservationEvent, error) {
	var ev ReservationEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, &PermanentError{Message: "decode reservation event", Cause: err}
	}
	if ev.ReservationID <= 0 {
		return nil, &PermanentError{Message: "reservation event missing id"}
	}
	return &ev, nil
}

// resultToError folds a push outcome back into the consumer's retry policy:
// success acks, retryable failures requeue, everything else is parked.
func resultToError(result models.SyncResult) error {
	if result.Success {
		return nil
	}

	err := fmt.Errorf("%s: %s", result.ErrorCode, result.Error)
	if retryableCode(result.ErrorCode) {
		return err
	}
	return &PermanentError{Message: "push rejected", Cause: err}
}

// classifyPushError maps channel errors onto the retry policy.
func classifyPushError(err error) error {
	if err == nil {
		return nil
	}

	// Circuit rejections are retryable too: the queue is exactly where
	// work should wait out a breaker's reset timeout.
	var circuitErr *channel.CircuitOpenError
	if channel.IsRetryable(err) || errors.As(err, &circuitErr) {
		return err
	}
	return &PermanentError{Message: "push rejected", Cause: err}
}

func retryableCode(code string) bool {
	switch code {
	case channel.CodeServer, channel.CodeNetwork, channel.CodeRateLimit, channel.CodeCircuitOpen:
		return true
	default:
		return false
	}
}
