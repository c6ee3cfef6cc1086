// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
)

// Subscriber wraps a durable JetStream subscription bound to one of the
// pre-created streams. Instances sharing a queue group load-balance.
type Subscriber struct {
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable subscriber bound to streamName. Prefetch
// caps in-flight deliveries per consumer; MaxDeliver bounds broker-side
// redelivery should a process die mid-message.
func NewSubscriber(cfg config.NATSConfig, streamName, queueGroup string, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if streamName == "" {
		return nil, fmt.Errorf("stream name required")
	}

	subOpts := []natsgo.SubOpt{
		natsgo.BindStream(streamName),
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.Prefetch),
		natsgo.AckWait(cfg.AckWait),
		natsgo.DeliverNew(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: queueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOptions(cfg, "subscriber-"+queueGroup, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: false,
			// Streams carry wildcard subjects and are created by the
			// topology manager; provisioning here would collide.
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    queueGroup,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{subscriber: sub, logger: logger}, nil
}

// Subscribe returns the message channel for a topic. The channel closes when
// the context is canceled or the subscriber shuts down.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, topic)
}

// Close shuts the subscription down.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
