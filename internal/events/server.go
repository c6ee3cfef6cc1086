// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
)

// EmbeddedServer runs an in-process NATS JetStream instance for
// single-binary deployments. Small properties get durable queues without
// operating a separate broker; larger installs point NATSConfig.URL at an
// external cluster and leave this disabled.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts the broker, blocking until it accepts
// connections or the startup timeout expires.
func NewEmbeddedServer(cfg config.NATSConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "lodgekeeper-events",
		Host:       "127.0.0.1",
		Port:       -1, // pick a free port; clients use ClientURL
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		MaxPayload: 8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL clients should use.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the broker, waiting for completion or context cancellation.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning reports broker health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
