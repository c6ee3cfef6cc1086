// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/metrics"
)

// Handler processes one decoded envelope. A nil return acknowledges the
// message; an error sends it through the retry and dead-letter policy.
type Handler func(ctx context.Context, msg *SyncMessage) error

// PermanentError marks a processing failure that no retry can fix, such as
// an unmapped room type or a validation rejection. The consumer parks such
// messages immediately instead of burning the retry budget.
type PermanentError struct {
	Message string
	Cause   error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// Consumer runs one queue worker: it subscribes to a topic, decodes
// envelopes, and applies the retry policy around a Handler.
//
// Retry accounting lives in the envelope rather than broker delivery state:
// a failed message is republished with its retry count incremented and the
// original acknowledged, so the count survives broker restarts and is
// visible to inspection tooling. Once the count reaches the maximum the
// message is parked on the dead-letter subject instead.
//
// A payload that does not decode is acknowledged without processing. It
// would fail identically on every redelivery, so requeueing it only burns
// the redelivery budget.
type Consumer struct {
	name       string // queue label for logs and metrics
	topic      string
	system     string
	direction  string // "inbound" or "outbound", selects the DLQ subject
	subscriber message.Subscriber
	publisher  *Publisher
	handler    Handler
	serializer *Serializer
	maxRetries int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConsumer builds a queue worker. maxRetries bounds redeliveries of a
// failing message; the first delivery does not count against it.
func NewConsumer(name, topic, system, direction string, sub message.Subscriber, pub *Publisher, maxRetries int, handler Handler) (*Consumer, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscriber required")
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler required")
	}
	if maxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative")
	}

	return &Consumer{
		name:       name,
		topic:      topic,
		system:     system,
		direction:  direction,
		subscriber: sub,
		publisher:  pub,
		handler:    handler,
		serializer: NewSerializer(),
		maxRetries: maxRetries,
	}, nil
}

// Start launches the worker loop in the background. Calling Start on a
// running consumer is a no-op.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	messages, err := c.subscriber.Subscribe(runCtx, c.topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.loop(runCtx, messages)
	}()

	logging.Info().
		Str("consumer", c.name).
		Str("topic", c.topic).
		Msg("consumer started")
	return nil
}

// Stop cancels the worker loop and waits for it to drain. Calling Stop on a
// stopped consumer is a no-op.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	logging.Info().Str("consumer", c.name).Msg("consumer stopped")
}

// Serve runs the worker loop in the calling goroutine until the context is
// canceled. It satisfies the supervision tree's service contract.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}
	c.loop(ctx, messages)
	return ctx.Err()
}

// String identifies the consumer in supervisor logs.
func (c *Consumer) String() string {
	return "consumer-" + c.name
}

func (c *Consumer) loop(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case wmMsg, ok := <-messages:
			if !ok {
				return
			}
			c.processMessage(ctx, wmMsg)
		}
	}
}

// processMessage applies the decode, handle, retry, dead-letter sequence to
// one delivery. The original delivery is always acknowledged: redelivery
// happens by republication, never by broker nack, so the retry count in the
// envelope stays authoritative.
func (c *Consumer) processMessage(ctx context.Context, wmMsg *message.Message) {
	envelope, err := c.serializer.Unmarshal(wmMsg.Payload)
	if err != nil {
		logging.Error().
			Err(err).
			Str("consumer", c.name).
			Str("message_uuid", wmMsg.UUID).
			Msg("discarding undecodable message")
		wmMsg.Ack()
		return
	}

	// Metadata wins over the body when the two disagree: republication
	// rewrites both, but metadata is what inspection tooling edits.
	if headerCount := parseCount(wmMsg.Metadata.Get(MetaRetryCount)); headerCount > envelope.RetryCount {
		envelope.RetryCount = headerCount
	}

	if err := c.handler(ctx, envelope); err != nil {
		c.handleFailure(ctx, envelope, err)
		wmMsg.Ack()
		return
	}

	metrics.MessagesAcked.WithLabelValues(c.name).Inc()
	wmMsg.Ack()
}

func (c *Consumer) handleFailure(ctx context.Context, envelope *SyncMessage, procErr error) {
	if IsPermanent(procErr) || envelope.RetryCount >= c.maxRetries {
		c.deadLetter(ctx, envelope, procErr)
		return
	}

	retry := *envelope
	retry.RetryCount++
	if err := c.publisher.Publish(ctx, c.topic, &retry); err != nil {
		// The original is acked regardless; losing the republish means
		// losing the message, so fall through to the dead-letter queue.
		logging.Error().
			Err(err).
			Str("consumer", c.name).
			Str("message_id", envelope.MessageID).
			Msg("retry republish failed, dead-lettering")
		c.deadLetter(ctx, envelope, procErr)
		return
	}

	metrics.MessagesRetried.WithLabelValues(c.name).Inc()
	logging.Warn().
		Str("consumer", c.name).
		Str("message_id", envelope.MessageID).
		Str("event_type", envelope.EventType).
		Int("retry_count", retry.RetryCount).
		Int("max_retries", c.maxRetries).
		Err(procErr).
		Msg("message processing failed, requeued")
}

func (c *Consumer) deadLetter(ctx context.Context, envelope *SyncMessage, procErr error) {
	meta := map[string]string{
		MetaLastError: procErr.Error(),
		MetaOrigTopic: c.topic,
	}
	topic := DLQTopic(c.system, c.direction)
	if err := c.publisher.PublishWithMeta(ctx, topic, envelope, meta); err != nil {
		logging.Error().
			Err(err).
			Str("consumer", c.name).
			Str("message_id", envelope.MessageID).
			Msg("dead-letter publish failed, message lost")
		return
	}

	metrics.MessagesDeadLettered.WithLabelValues(c.name).Inc()
	logging.Error().
		Str("consumer", c.name).
		Str("message_id", envelope.MessageID).
		Str("event_type", envelope.EventType).
		Int("retry_count", envelope.RetryCount).
		Err(procErr).
		Msg("message exhausted retries, dead-lettered")
}
