// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

// Package config provides configuration management for Lodgekeeper.
//
// Configuration is loaded via koanf v2 with layered sources, highest
// priority last:
//
//  1. Built-in defaults
//  2. Config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (LODGEKEEPER_ prefix, __ as nesting separator)
//
// Channel-manager credentials are stored encrypted (AES-256-GCM, see
// encryption.go) and decrypted only at client construction time.
package config

import "time"

// Config is the root configuration for the server process.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	NATS     NATSConfig     `koanf:"nats"`
	Sync     SyncConfig     `koanf:"sync"`
	Security SecurityConfig `koanf:"security"`

	// Integrated external booking-distribution systems.
	Beds24  ChannelConfig `koanf:"beds24"`
	Channex ChannelConfig `koanf:"channex"`
}

// ServerConfig holds HTTP server settings for the admin trigger surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerMinute bounds admin API request rate per client IP.
	RequestsPerMinute int `koanf:"requests_per_minute"`
}

// DatabaseConfig holds SQLite datastore settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `koanf:"path" validate:"required"`

	// BusyTimeout is the SQLite busy handler timeout.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds secrets used by the process.
type SecurityConfig struct {
	// CredentialSecret derives the AES key that protects stored channel
	// credentials. Must be at least 32 characters.
	CredentialSecret string `koanf:"credential_secret"`
}

// NATSConfig holds broker settings for the event topology.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	// Prefetch is the per-consumer concurrency bound (JetStream MaxAckPending).
	Prefetch int `koanf:"prefetch" validate:"min=1"`

	// MaxDeliver is the redelivery budget before a message is dead-lettered.
	MaxDeliver int `koanf:"max_deliver" validate:"min=1"`

	AckWait       time.Duration `koanf:"ack_wait"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`

	// QueueTTL is how long undelivered work messages are retained.
	QueueTTL time.Duration `koanf:"queue_ttl"`

	// DLQRetention is how long dead-lettered messages are kept for manual
	// inspection and replay.
	DLQRetention time.Duration `koanf:"dlq_retention"`
}

// SyncConfig holds engine-wide sync behavior.
type SyncConfig struct {
	// PullInterval is the cadence of the scheduled inbound pull.
	PullInterval time.Duration `koanf:"pull_interval"`

	// ReconcileInterval is the cadence of the drift-reconciliation job.
	// Zero disables reconciliation.
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`

	// PullWindowDays is the date window used when listing external bookings.
	PullWindowDays int `koanf:"pull_window_days" validate:"min=1"`
}

// RateLimitConfig configures the per-system token bucket.
type RateLimitConfig struct {
	// Capacity is the bucket size in tokens (burst allowance).
	Capacity float64 `koanf:"capacity"`

	// RefillPerSecond is the steady-state request rate.
	RefillPerSecond float64 `koanf:"refill_per_second"`
}

// BreakerConfig configures the per-system circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold uint32 `koanf:"failure_threshold"`

	// ResetTimeout is how long the circuit stays open before allowing
	// half-open trial requests.
	ResetTimeout time.Duration `koanf:"reset_timeout"`

	// HalfOpenSuccesses is the number of consecutive trial successes
	// required to close the circuit again.
	HalfOpenSuccesses uint32 `koanf:"half_open_successes"`
}

// RetryConfig configures bounded exponential backoff for retryable calls.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	Multiplier  float64       `koanf:"multiplier"`
}

// ChannelConfig holds per-external-system integration settings.
type ChannelConfig struct {
	Enabled    bool   `koanf:"enabled"`
	BaseURL    string `koanf:"base_url"`
	PropertyID string `koanf:"property_id"`

	// Username and CredentialCiphertext form the API credential. The
	// ciphertext is produced by CredentialEncryptor when the credential is
	// first saved; the engine only ever decrypts it.
	Username             string `koanf:"username"`
	CredentialCiphertext string `koanf:"credential_ciphertext"`

	// WebhookSecret authenticates inbound webhook notifications.
	WebhookSecret string `koanf:"webhook_secret"`

	Timeout   time.Duration   `koanf:"timeout"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Retry     RetryConfig     `koanf:"retry"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are the
// base layer; file and environment values override them.
func defaultConfig() *Config {
	channelDefaults := ChannelConfig{
		Enabled: false,
		Timeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			Capacity:        5,
			RefillPerSecond: 2,
		},
		Breaker: BreakerConfig{
			FailureThreshold:  5,
			ResetTimeout:      60 * time.Second,
			HalfOpenSuccesses: 2,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
	}

	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8462,
			Timeout:           30 * time.Second,
			RequestsPerMinute: 120,
		},
		Database: DatabaseConfig{
			Path:        "/data/lodgekeeper.db",
			BusyTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			Prefetch:       4,
			MaxDeliver:     5,
			AckWait:        30 * time.Second,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			QueueTTL:       24 * time.Hour,
			DLQRetention:   7 * 24 * time.Hour,
		},
		Sync: SyncConfig{
			PullInterval:      5 * time.Minute,
			ReconcileInterval: 0,
			PullWindowDays:    365,
		},
		Beds24:  channelDefaults,
		Channex: channelDefaults,
	}
}

// EnabledSystems returns the names of the external systems that are enabled,
// in a fixed order.
func (c *Config) EnabledSystems() []string {
	var systems []string
	if c.Beds24.Enabled {
		systems = append(systems, "beds24")
	}
	if c.Channex.Enabled {
		systems = append(systems, "channex")
	}
	return systems
}

// Channel returns the ChannelConfig for a system name, or nil when unknown.
func (c *Config) Channel(system string) *ChannelConfig {
	switch system {
	case "beds24":
		return &c.Beds24
	case "channex":
		return &c.Channex
	default:
		return nil
	}
}
