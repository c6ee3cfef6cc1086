// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
)

// fakeJetStream records stream operations without a broker.
type fakeJetStream struct {
	existing map[string]bool
	created  []jetstream.StreamConfig
	updated  []jetstream.StreamConfig
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{existing: make(map[string]bool)}
}

func (f *fakeJetStream) Stream(ctx context.Context, name string) (jetstream.Stream, error) {
	if f.existing[name] {
		return nil, nil
	}
	return nil, jetstream.ErrStreamNotFound
}

func (f *fakeJetStream) CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.existing[cfg.Name] = true
	f.created = append(f.created, cfg)
	return nil, nil
}

func (f *fakeJetStream) UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated = append(f.updated, cfg)
	return nil, nil
}

func testNATSConfig() config.NATSConfig {
	return config.NATSConfig{
		QueueTTL:     24 * time.Hour,
		DLQRetention: 7 * 24 * time.Hour,
	}
}

func TestEnsureTopology(t *testing.T) {
	js := newFakeJetStream()
	topo := NewTopologyWithContext(js, []string{"beds24", "channex"}, testNATSConfig())

	if err := topo.EnsureTopology(context.Background()); err != nil {
		t.Fatalf("EnsureTopology() error: %v", err)
	}

	if len(js.created) != 3 {
		t.Fatalf("expected 3 streams created, got %d", len(js.created))
	}

	byName := make(map[string]jetstream.StreamConfig)
	for _, cfg := range js.created {
		byName[cfg.Name] = cfg
	}

	t.Run("work stream carries both directions", func(t *testing.T) {
		cfg, ok := byName["LK_BEDS24"]
		if !ok {
			t.Fatal("LK_BEDS24 not created")
		}
		if len(cfg.Subjects) != 2 {
			t.Fatalf("subjects = %v", cfg.Subjects)
		}
		if cfg.Subjects[0] != "beds24.booking.>" || cfg.Subjects[1] != "pms.beds24.>" {
			t.Errorf("subjects = %v", cfg.Subjects)
		}
		if cfg.MaxAge != 24*time.Hour {
			t.Errorf("work stream MaxAge = %v, want 24h", cfg.MaxAge)
		}
	})

	t.Run("dead letter stream retains for seven days", func(t *testing.T) {
		cfg, ok := byName[DLQStreamName]
		if !ok {
			t.Fatal("DLQ stream not created")
		}
		if cfg.MaxAge != 7*24*time.Hour {
			t.Errorf("DLQ MaxAge = %v, want 168h", cfg.MaxAge)
		}
		if len(cfg.Subjects) != 1 || cfg.Subjects[0] != "dlq.>" {
			t.Errorf("DLQ subjects = %v", cfg.Subjects)
		}
	})
}

func TestEnsureTopologyIdempotent(t *testing.T) {
	js := newFakeJetStream()
	topo := NewTopologyWithContext(js, []string{"beds24"}, testNATSConfig())

	if err := topo.EnsureTopology(context.Background()); err != nil {
		t.Fatalf("first EnsureTopology() error: %v", err)
	}
	if err := topo.EnsureTopology(context.Background()); err != nil {
		t.Fatalf("second EnsureTopology() error: %v", err)
	}

	if len(js.created) != 2 {
		t.Errorf("expected 2 creates total, got %d", len(js.created))
	}
	if len(js.updated) != 2 {
		t.Errorf("expected 2 updates on the second pass, got %d", len(js.updated))
	}
}

func TestTopologyHealth(t *testing.T) {
	js := newFakeJetStream()
	topo := NewTopologyWithContext(js, []string{"beds24"}, testNATSConfig())

	if topo.IsHealthy(context.Background()) {
		t.Error("empty broker should not be healthy")
	}

	if err := topo.EnsureTopology(context.Background()); err != nil {
		t.Fatalf("EnsureTopology() error: %v", err)
	}
	if !topo.IsHealthy(context.Background()) {
		t.Error("provisioned broker should be healthy")
	}
}
