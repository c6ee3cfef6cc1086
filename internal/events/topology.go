// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
)

// dedupeWindow is the JetStream duplicate-detection window. Republished
// retries carry fresh message IDs, so the window only needs to absorb
// publisher-side retransmits.
const dedupeWindow = 2 * time.Minute

// DLQStreamName holds dead-lettered messages for every system and direction.
const DLQStreamName = "LK_DLQ"

// WorkStreamName returns the per-system work stream name. Stream names
// cannot contain dots or wildcards, so the system name is uppercased into
// the LK_<SYSTEM> form.
func WorkStreamName(system string) string {
	return "LK_" + strings.ToUpper(system)
}

// JetStreamContext is the subset of jetstream.JetStream the topology needs.
// Narrowing it keeps tests to a small mock surface.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// Topology provisions the broker layout: one work stream per enabled system
// carrying both directions' subjects, plus a shared dead-letter stream with
// longer retention. All operations are idempotent so every process can run
// them at startup without coordination.
type Topology struct {
	js      JetStreamContext
	systems []string
	cfg     config.NATSConfig
}

// NewTopology builds a topology manager from a live NATS connection.
func NewTopology(nc *natsgo.Conn, systems []string, cfg config.NATSConfig) (*Topology, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return NewTopologyWithContext(js, systems, cfg), nil
}

// NewTopologyWithContext builds a topology manager over an existing
// JetStream context.
func NewTopologyWithContext(js JetStreamContext, systems []string, cfg config.NATSConfig) *Topology {
	return &Topology{js: js, systems: systems, cfg: cfg}
}

// EnsureTopology creates or updates every stream the engine needs. Safe to
// call repeatedly and from concurrently starting processes.
func (t *Topology) EnsureTopology(ctx context.Context) error {
	for _, system := range t.systems {
		workCfg := jetstream.StreamConfig{
			Name: WorkStreamName(system),
			Subjects: []string{
				InboundSubjects(system),
				OutboundSubjects(system),
			},
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      t.cfg.QueueTTL,
			Duplicates:  dedupeWindow,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			AllowDirect: true,
		}
		if err := t.ensureStream(ctx, workCfg); err != nil {
			return err
		}
	}

	dlqCfg := jetstream.StreamConfig{
		Name:        DLQStreamName,
		Subjects:    []string{"dlq.>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      t.cfg.DLQRetention,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}
	return t.ensureStream(ctx, dlqCfg)
}

// ensureStream creates the stream if absent, otherwise reconciles its
// configuration. Configuration drift between restarts resolves toward the
// local settings.
func (t *Topology) ensureStream(ctx context.Context, cfg jetstream.StreamConfig) error {
	_, err := t.js.Stream(ctx, cfg.Name)
	if err == nil {
		if _, err := t.js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		logging.Debug().Str("stream", cfg.Name).Msg("stream configuration reconciled")
		return nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := t.js.CreateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logging.Info().
			Str("stream", cfg.Name).
			Strs("subjects", cfg.Subjects).
			Dur("max_age", cfg.MaxAge).
			Msg("stream created")
		return nil
	}

	return fmt.Errorf("check stream %s: %w", cfg.Name, err)
}

// IsHealthy reports whether every expected stream is reachable.
func (t *Topology) IsHealthy(ctx context.Context) bool {
	for _, system := range t.systems {
		if _, err := t.js.Stream(ctx, WorkStreamName(system)); err != nil {
			return false
		}
	}
	_, err := t.js.Stream(ctx, DLQStreamName)
	return err == nil
}
