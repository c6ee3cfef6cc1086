// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/metrics"
)

// natsOptions builds the shared connection option set. Reconnection is
// unbounded by default so a broker restart never strands the process.
func natsOptions(cfg config.NATSConfig, role string, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("lodgekeeper-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"role": role,
				"url":  nc.ConnectedUrl(),
			})
		}),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			logger.Error("NATS async error", err, watermill.LogFields{"role": role})
		}),
	}
}

// Publisher stamps envelopes and writes them to the broker. The backing
// transport is the watermill message.Publisher interface, so tests can swap
// the JetStream publisher for an in-memory one.
type Publisher struct {
	pub        message.Publisher
	serializer *Serializer
	logger     watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates a JetStream-backed publisher. Streams must already
// exist: auto-provisioning is disabled because subjects span pre-created
// wildcard streams.
func NewPublisher(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, "publisher", logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return NewPublisherWithBackend(pub, logger), nil
}

// NewPublisherWithBackend wraps an existing transport. Used by tests and by
// the consumer retry path, which republishes through the same connection.
func NewPublisherWithBackend(pub message.Publisher, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &Publisher{
		pub:        pub,
		serializer: NewSerializer(),
		logger:     logger,
	}
}

// Publish writes one envelope to the given topic. The envelope's message ID
// doubles as the JetStream dedup ID; retries get a suffixed dedup ID so the
// duplicate window does not swallow deliberate redelivery.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *SyncMessage) error {
	return p.PublishWithMeta(ctx, topic, msg, nil)
}

// PublishWithMeta publishes an envelope with extra metadata entries, used by
// the dead-letter path to preserve the failure context alongside the body.
func (p *Publisher) PublishWithMeta(ctx context.Context, topic string, msg *SyncMessage, extra map[string]string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("publisher closed")
	}
	p.mu.Unlock()

	data, err := p.serializer.Marshal(msg)
	if err != nil {
		return err
	}

	dedupID := msg.MessageID
	if msg.RetryCount > 0 {
		dedupID = fmt.Sprintf("%s-r%d", msg.MessageID, msg.RetryCount)
	}

	wmMsg := message.NewMessage(dedupID, data)
	wmMsg.SetContext(ctx)
	wmMsg.Metadata.Set(natsgo.MsgIdHdr, dedupID)
	stampMetadata(wmMsg, msg)
	for k, v := range extra {
		wmMsg.Metadata.Set(k, v)
	}

	if err := p.pub.Publish(topic, wmMsg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	metrics.MessagesPublished.WithLabelValues(msg.System, msg.EventType).Inc()
	p.logger.Debug("Message published", watermill.LogFields{
		"topic":      topic,
		"message_id": msg.MessageID,
		"event_type": msg.EventType,
		"priority":   msg.Priority,
	})
	return nil
}

// Close shuts the transport down. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}

// stampMetadata mirrors the envelope's routing fields into message metadata
// so brokers and inspection tooling can read them without decoding the body.
func stampMetadata(wmMsg *message.Message, msg *SyncMessage) {
	wmMsg.Metadata.Set(MetaMessageID, msg.MessageID)
	wmMsg.Metadata.Set(MetaTimestamp, msg.Timestamp.Format(time.RFC3339Nano))
	wmMsg.Metadata.Set(MetaEventType, msg.EventType)
	wmMsg.Metadata.Set(MetaRetryCount, strconv.Itoa(msg.RetryCount))
	wmMsg.Metadata.Set(MetaPriority, strconv.Itoa(msg.Priority))
	wmMsg.Metadata.Set(MetaSystem, msg.System)
}
