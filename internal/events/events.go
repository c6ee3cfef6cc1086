// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

// Package events is the asynchronous backbone of the sync engine. It owns
// the JetStream topology (one work stream per external system plus a shared
// dead-letter stream), the message envelope, and the publisher/consumer
// pairs that move sync work between the HTTP surface, the channel services,
// and the broker.
package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event types carried in the envelope. Outbound types instruct a push toward
// an external system; the inbound type carries a booking received from one.
const (
	EventReservationCreate = "reservation.create"
	EventReservationUpdate = "reservation.update"
	EventReservationCancel = "reservation.cancel"
	EventAvailabilityPush  = "availability.update"
	EventRatePush          = "rate.update"
	EventBookingInbound    = "booking.inbound"
)

// Delivery priorities, 0-10. Cancellations outrank everything: a guest who
// cancelled must stop being sold to, while a stale rate is merely suboptimal.
const (
	PriorityCancel       = 10
	PriorityCreate       = 8
	PriorityUpdate       = 6
	PriorityAvailability = 4
	PriorityRate         = 4
	PriorityDefault      = 0
)

// Metadata keys stamped on every broker message.
const (
	MetaMessageID  = "message_id"
	MetaTimestamp  = "timestamp"
	MetaEventType  = "event_type"
	MetaRetryCount = "retry_count"
	MetaPriority   = "priority"
	MetaSystem     = "system"
	MetaLastError  = "last_error"
	MetaOrigTopic  = "original_topic"
)

// SyncMessage is the envelope for every message on the bus. Payload remains
// raw JSON until a consumer knows, from EventType, which concrete shape to
// decode it into.
type SyncMessage struct {
	MessageID  string    `json:"message_id"`
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	RetryCount int       `json:"retry_count"`
	Priority   int       `json:"priority"`
	System     string    `json:"system"`
	Payload    []byte    `json:"payload"`
}

// NewSyncMessage builds an envelope with a fresh message ID and zeroed retry
// count. The payload must already be serialized.
func NewSyncMessage(system, eventType string, priority int, payload []byte) *SyncMessage {
	return &SyncMessage{
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Priority:  priority,
		System:    system,
		Payload:   payload,
	}
}

// Validate rejects envelopes that cannot be routed.
func (m *SyncMessage) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("message ID required")
	}
	if m.EventType == "" {
		return fmt.Errorf("event type required")
	}
	if m.System == "" {
		return fmt.Errorf("system required")
	}
	if m.Priority < 0 || m.Priority > 10 {
		return fmt.Errorf("priority %d out of range 0-10", m.Priority)
	}
	return nil
}

// EventPriority returns the delivery priority for an event type.
func EventPriority(eventType string) int {
	switch eventType {
	case EventReservationCancel:
		return PriorityCancel
	case EventReservationCreate:
		return PriorityCreate
	case EventReservationUpdate:
		return PriorityUpdate
	case EventAvailabilityPush, EventRatePush:
		return PriorityAvailability
	default:
		return PriorityDefault
	}
}

// OutboundTopic is the subject work destined for an external system is
// published on, e.g. "pms.beds24.reservation.create".
func OutboundTopic(system, eventType string) string {
	return "pms." + system + "." + eventType
}

// InboundTopic is the subject bookings received from an external system are
// published on, e.g. "beds24.booking.inbound".
func InboundTopic(system string) string {
	return system + ".booking.inbound"
}

// OutboundSubjects is the wildcard an outbound consumer binds to.
func OutboundSubjects(system string) string {
	return "pms." + system + ".>"
}

// InboundSubjects is the wildcard an inbound consumer binds to.
func InboundSubjects(system string) string {
	return system + ".booking.>"
}

// DLQTopic is the subject failed messages from one direction of one system
// are parked on, e.g. "dlq.beds24.outbound".
func DLQTopic(system, direction string) string {
	return "dlq." + system + "." + direction
}

// parseCount reads a non-negative integer metadata value, treating absent or
// malformed values as zero.
func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
