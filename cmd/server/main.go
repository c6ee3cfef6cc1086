// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

// Package main is the entry point for the Lodgekeeper server.
//
// Lodgekeeper keeps a property-management system's reservations, availability,
// and rates in sync with external booking-distribution channels. Local changes
// are queued and pushed outbound through per-channel workers; external bookings
// arrive inbound via webhooks and scheduled pulls and are normalized into the
// local datastore.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered load (defaults, config file, environment)
//  2. Logging: zerolog, configured from the loaded settings
//  3. Database: SQLite datastore, stale sync runs recovered on boot
//  4. Channel manager: one adapter, push, and pull service per enabled system
//  5. Broker: embedded NATS JetStream (default) or an external NATS URL,
//     then stream topology provisioning (idempotent)
//  6. Messaging: publisher, dead-letter queue, per-system consumers
//  7. Supervisor tree: schedulers, consumers, and the HTTP server under suture
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The supervisor tree stops its
// services within the configured shutdown timeout, then messaging connections
// and the embedded broker are closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/lodgekeeper/lodgekeeper/internal/api"
	"github.com/lodgekeeper/lodgekeeper/internal/channel"
	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/database"
	"github.com/lodgekeeper/lodgekeeper/internal/events"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so this goes through the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Strs("systems", cfg.EnabledSystems()).
		Msg("Starting Lodgekeeper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Runs left in the running state by a crashed process would block new
	// syncs forever.
	if recovered, err := db.RecoverStaleRuns(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to recover stale sync runs")
	} else if recovered > 0 {
		logging.Warn().Int64("count", recovered).Msg("Recovered stale sync runs from previous process")
	}

	// Config validation guarantees a secret whenever any channel carries a
	// credential ciphertext, so a missing secret here means no channels.
	var encryptor *config.CredentialEncryptor
	if cfg.Security.CredentialSecret != "" {
		encryptor, err = config.NewCredentialEncryptor(cfg.Security.CredentialSecret)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize credential encryption")
		}
	}

	manager, err := channel.NewManager(db, cfg, encryptor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize channel manager")
	}

	systems := cfg.EnabledSystems()
	if len(systems) == 0 {
		logging.Warn().Msg("No channel systems enabled, only the admin API will be available")
	}

	// Broker. The embedded server keeps single-node deployments free of an
	// external NATS dependency; its client URL replaces the configured one.
	var embedded *events.EmbeddedServer
	if cfg.NATS.EmbeddedServer {
		embedded, err = events.NewEmbeddedServer(cfg.NATS)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded broker")
		}
		cfg.NATS.URL = embedded.ClientURL()
		logging.Info().Str("url", cfg.NATS.URL).Msg("Embedded JetStream broker started")
	}

	nc, err := natsgo.Connect(cfg.NATS.URL,
		natsgo.Name("lodgekeeper-admin"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.NATS.MaxReconnects),
		natsgo.ReconnectWait(cfg.NATS.ReconnectWait),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to broker")
	}
	defer nc.Close()

	topology, err := events.NewTopology(nc, systems, cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize stream topology")
	}
	if err := topology.EnsureTopology(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision streams")
	}

	wmLogger := logging.NewWatermillAdapter()

	publisher, err := events.NewPublisher(cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()

	queue, err := events.NewSyncPublisher(publisher)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create sync publisher")
	}

	dlq, err := events.NewDLQ(nc, publisher)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize dead-letter queue")
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	consumerCfg := events.ConsumerConfig{MaxRetries: cfg.NATS.MaxDeliver}
	var subscribers []*events.Subscriber

	for _, name := range systems {
		sys := manager.System(name)
		if sys == nil {
			continue
		}
		stream := events.WorkStreamName(name)

		outSub, err := events.NewSubscriber(cfg.NATS, stream, name+"-outbound", wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Str("system", name).Msg("Failed to create outbound subscriber")
		}
		subscribers = append(subscribers, outSub)

		outbound, err := events.NewOutboundConsumer(name, consumerCfg, outSub, publisher, sys.Push, sys.Adapter)
		if err != nil {
			logging.Fatal().Err(err).Str("system", name).Msg("Failed to create outbound consumer")
		}
		tree.AddMessagingService(outbound)

		inSub, err := events.NewSubscriber(cfg.NATS, stream, name+"-inbound", wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Str("system", name).Msg("Failed to create inbound subscriber")
		}
		subscribers = append(subscribers, inSub)

		inbound, err := events.NewInboundConsumer(name, consumerCfg, inSub, publisher, sys.Pull)
		if err != nil {
			logging.Fatal().Err(err).Str("system", name).Msg("Failed to create inbound consumer")
		}
		tree.AddMessagingService(inbound)

		tree.AddSyncService(channel.NewPullScheduler(sys, name, cfg.Sync.PullInterval, cfg.Sync.PullWindowDays))
		if cfg.Sync.ReconcileInterval > 0 {
			tree.AddSyncService(channel.NewReconciler(sys, name, cfg.Sync.ReconcileInterval))
		}

		logging.Info().Str("system", name).Msg("Channel workers registered")
	}

	handler := api.NewHandler(cfg, db, manager, queue, dlq, topology.IsHealthy)
	server := api.NewServer(cfg.Server, api.NewRouter(handler))
	tree.AddAPIService(server)
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("HTTP server registered")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	for _, sub := range subscribers {
		if err := sub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}

	if embedded != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error stopping embedded broker")
		}
		shutdownCancel()
	}

	logging.Info().Msg("Lodgekeeper stopped")
}
