// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lodgekeeper/lodgekeeper/internal/logging"
)

// DLQEntry is one parked message as shown to the operator.
type DLQEntry struct {
	Sequence       uint64    `json:"sequence"`
	Subject        string    `json:"subject"`
	MessageID      string    `json:"message_id"`
	System         string    `json:"system"`
	EventType      string    `json:"event_type"`
	RetryCount     int       `json:"retry_count"`
	LastError      string    `json:"last_error,omitempty"`
	OriginalTopic  string    `json:"original_topic,omitempty"`
	DeadLetteredAt time.Time `json:"dead_lettered_at"`
	Payload        []byte    `json:"payload,omitempty"`
}

// DLQ provides inspection and replay over the shared dead-letter stream.
// Replay is the manual recovery path once the underlying failure, usually a
// missing mapping or a misconfigured credential, has been fixed.
type DLQ struct {
	js         jetstream.JetStream
	publisher  *Publisher
	serializer *Serializer
}

// NewDLQ builds a DLQ surface over a live connection. The publisher is used
// for replays so replayed messages travel the same path as fresh ones.
func NewDLQ(nc *natsgo.Conn, pub *Publisher) (*DLQ, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return &DLQ{js: js, publisher: pub, serializer: NewSerializer()}, nil
}

// List returns up to limit parked messages for one system and direction,
// oldest first. Direction may be empty to cover both.
func (d *DLQ) List(ctx context.Context, system, direction string, limit int) ([]DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	subject := "dlq." + system + ".>"
	if direction != "" {
		subject = DLQTopic(system, direction)
	}

	cons, err := d.js.OrderedConsumer(ctx, DLQStreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create DLQ consumer: %w", err)
	}

	batch, err := cons.FetchNoWait(limit)
	if err != nil {
		return nil, fmt.Errorf("fetch DLQ messages: %w", err)
	}

	var entries []DLQEntry
	for msg := range batch.Messages() {
		entries = append(entries, d.entryFromMsg(msg))
	}
	if err := batch.Error(); err != nil {
		return nil, fmt.Errorf("drain DLQ batch: %w", err)
	}
	return entries, nil
}

// Replay re-publishes one parked message to its original topic with a reset
// retry count, then removes it from the dead-letter stream. A replayed
// message that fails again will work its way back with fresh retries.
func (d *DLQ) Replay(ctx context.Context, sequence uint64) error {
	stream, err := d.js.Stream(ctx, DLQStreamName)
	if err != nil {
		return fmt.Errorf("get DLQ stream: %w", err)
	}

	raw, err := stream.GetMsg(ctx, sequence)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return fmt.Errorf("DLQ message %d not found", sequence)
		}
		return fmt.Errorf("get DLQ message %d: %w", sequence, err)
	}

	envelope, err := d.serializer.Unmarshal(raw.Data)
	if err != nil {
		return fmt.Errorf("decode DLQ message %d: %w", sequence, err)
	}

	topic := raw.Header.Get(MetaOrigTopic)
	if topic == "" {
		// Pre-header entries: reconstruct the topic from the envelope.
		if envelope.EventType == EventBookingInbound {
			topic = InboundTopic(envelope.System)
		} else {
			topic = OutboundTopic(envelope.System, envelope.EventType)
		}
	}

	originalID := envelope.MessageID
	envelope.MessageID = uuid.NewString()
	envelope.RetryCount = 0

	if err := d.publisher.Publish(ctx, topic, envelope); err != nil {
		return fmt.Errorf("replay DLQ message %d: %w", sequence, err)
	}

	if err := stream.DeleteMsg(ctx, sequence); err != nil {
		// The replay already happened; a leftover DLQ entry is a
		// cosmetic problem, a lost replay is not.
		logging.Warn().
			Err(err).
			Uint64("sequence", sequence).
			Msg("replayed DLQ message could not be deleted")
	}

	logging.Info().
		Uint64("sequence", sequence).
		Str("original_message_id", originalID).
		Str("message_id", envelope.MessageID).
		Str("topic", topic).
		Msg("DLQ message replayed")
	return nil
}

// Delete removes one parked message without replaying it.
func (d *DLQ) Delete(ctx context.Context, sequence uint64) error {
	stream, err := d.js.Stream(ctx, DLQStreamName)
	if err != nil {
		return fmt.Errorf("get DLQ stream: %w", err)
	}
	if err := stream.DeleteMsg(ctx, sequence); err != nil {
		return fmt.Errorf("delete DLQ message %d: %w", sequence, err)
	}
	return nil
}

func (d *DLQ) entryFromMsg(msg jetstream.Msg) DLQEntry {
	entry := DLQEntry{
		Subject:       msg.Subject(),
		LastError:     msg.Headers().Get(MetaLastError),
		OriginalTopic: msg.Headers().Get(MetaOrigTopic),
		Payload:       msg.Data(),
	}

	if meta, err := msg.Metadata(); err == nil {
		entry.Sequence = meta.Sequence.Stream
		entry.DeadLetteredAt = meta.Timestamp
	}

	if envelope, err := d.serializer.Unmarshal(msg.Data()); err == nil {
		entry.MessageID = envelope.MessageID
		entry.System = envelope.System
		entry.EventType = envelope.EventType
		entry.RetryCount = envelope.RetryCount
	}
	return entry
}
