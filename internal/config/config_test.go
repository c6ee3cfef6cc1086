// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package config

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8462 {
		t.Errorf("Server.Port = %d, want 8462", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Database.Path != "/data/lodgekeeper.db" {
		t.Errorf("Database.Path = %q, want /data/lodgekeeper.db", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("NATS.URL = %q, want nats://127.0.0.1:4222", cfg.NATS.URL)
	}
	if !cfg.NATS.EmbeddedServer {
		t.Error("NATS.EmbeddedServer should be true by default")
	}
	if cfg.Sync.PullInterval != 5*time.Minute {
		t.Errorf("Sync.PullInterval = %v, want 5m", cfg.Sync.PullInterval)
	}
	if cfg.Sync.PullWindowDays != 365 {
		t.Errorf("Sync.PullWindowDays = %d, want 365", cfg.Sync.PullWindowDays)
	}

	// Channels ship disabled with shared resilience defaults.
	for _, ch := range []*ChannelConfig{&cfg.Beds24, &cfg.Channex} {
		if ch.Enabled {
			t.Error("channels should be disabled by default")
		}
		if ch.Breaker.FailureThreshold != 5 {
			t.Errorf("Breaker.FailureThreshold = %d, want 5", ch.Breaker.FailureThreshold)
		}
		if ch.Retry.MaxAttempts != 3 {
			t.Errorf("Retry.MaxAttempts = %d, want 3", ch.Retry.MaxAttempts)
		}
		if ch.RateLimit.Capacity != 5 || ch.RateLimit.RefillPerSecond != 2 {
			t.Errorf("RateLimit = %+v, want 5 capacity / 2 per second", ch.RateLimit)
		}
	}
}

func TestEnvKeyTransform(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"LODGEKEEPER_SERVER__PORT", "server.port"},
		{"LODGEKEEPER_LOGGING__LEVEL", "logging.level"},
		{"LODGEKEEPER_BEDS24__BASE_URL", "beds24.base_url"},
		{"LODGEKEEPER_BEDS24__CREDENTIAL_CIPHERTEXT", "beds24.credential_ciphertext"},
		{"LODGEKEEPER_SECURITY__CREDENTIAL_SECRET", "security.credential_secret"},
		{"LODGEKEEPER_NATS__MAX_DELIVER", "nats.max_deliver"},
	}
	for _, tt := range tests {
		if got := envKeyTransform(tt.input); got != tt.want {
			t.Errorf("envKeyTransform(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestLoadLayering exercises the full precedence chain: built-in defaults,
// then the config file, then environment variables, highest last.
func TestLoadLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server:\n  port: 9000\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LODGEKEEPER_LOGGING__LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// File overrides the default.
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000 from file", cfg.Server.Port)
	}
	// Environment overrides the file.
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn from environment", cfg.Logging.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Database.Path != "/data/lodgekeeper.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

// validTestConfig returns a configuration that passes Validate, for the
// cross-field tests to break one rule at a time.
func validTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.CredentialSecret = strings.Repeat("s", 32)
	cfg.Beds24.Enabled = true
	cfg.Beds24.BaseURL = "https://api.beds24.com/v2"
	cfg.Beds24.PropertyID = "prop-1"
	cfg.Beds24.Username = "owner"
	cfg.Beds24.CredentialCiphertext = "ZmFrZS1jaXBoZXJ0ZXh0"
	return cfg
}

func TestValidateCrossFieldRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error  // matched with errors.Is when set
		wantSub string // substring match otherwise; empty means valid
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "short credential secret",
			mutate:  func(c *Config) { c.Security.CredentialSecret = "too-short" },
			wantErr: ErrWeakCredentialSecret,
		},
		{
			name: "enabled system without base URL",
			mutate: func(c *Config) {
				c.Beds24.BaseURL = ""
			},
			wantErr: ErrMissingBaseURL,
		},
		{
			name: "base URL without scheme",
			mutate: func(c *Config) {
				c.Beds24.BaseURL = "api.beds24.com/v2"
			},
			wantSub: "invalid base URL",
		},
		{
			name: "enabled system without property id",
			mutate: func(c *Config) {
				c.Beds24.PropertyID = ""
			},
			wantErr: ErrMissingPropertyID,
		},
		{
			name: "enabled system without credential",
			mutate: func(c *Config) {
				c.Beds24.CredentialCiphertext = ""
			},
			wantErr: ErrMissingCredential,
		},
		{
			name: "credential ciphertext without secret",
			mutate: func(c *Config) {
				c.Security.CredentialSecret = ""
			},
			wantSub: "credential_secret required",
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				c.Server.Port = 0
			},
			wantSub: "invalid configuration",
		},
		{
			name: "unknown log level",
			mutate: func(c *Config) {
				c.Logging.Level = "loud"
			},
			wantSub: "invalid configuration",
		},
		{
			name: "zero retry attempts",
			mutate: func(c *Config) {
				c.Beds24.Retry.MaxAttempts = 0
			},
			wantSub: "retry.max_attempts",
		},
		{
			name: "sub-unit backoff multiplier",
			mutate: func(c *Config) {
				c.Beds24.Retry.Multiplier = 0.5
			},
			wantSub: "retry.multiplier",
		},
		{
			name: "zero rate limit",
			mutate: func(c *Config) {
				c.Beds24.RateLimit.RefillPerSecond = 0
			},
			wantSub: "rate limit",
		},
		{
			name: "zero breaker threshold",
			mutate: func(c *Config) {
				c.Beds24.Breaker.FailureThreshold = 0
			},
			wantSub: "breaker thresholds",
		},
		{
			name: "disabled system skips channel checks",
			mutate: func(c *Config) {
				c.Beds24.Enabled = false
				c.Beds24.BaseURL = ""
				c.Beds24.CredentialCiphertext = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == nil && tt.wantSub == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if tt.wantSub != "" && !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestCredentialEncryptorRoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	plaintexts := []string{"p", "beds24-api-key", strings.Repeat("x", 4096), "ünïcödé-секрет"}
	for _, plaintext := range plaintexts {
		ciphertext, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}
		got, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestCredentialEncryptorUniqueNonce(t *testing.T) {
	enc, err := NewCredentialEncryptor(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	first, err := enc.Encrypt("same-credential")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := enc.Encrypt("same-credential")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if first == second {
		t.Error("identical ciphertexts for the same plaintext; nonce reuse")
	}
}

func TestCredentialEncryptorErrors(t *testing.T) {
	if _, err := NewCredentialEncryptor(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("empty secret: err = %v, want ErrEmptySecret", err)
	}

	enc, err := NewCredentialEncryptor(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	if _, err := enc.Encrypt(""); !errors.Is(err, ErrEmptyPlaintext) {
		t.Errorf("empty plaintext: err = %v, want ErrEmptyPlaintext", err)
	}
	if _, err := enc.Decrypt(""); !errors.Is(err, ErrEmptyCiphertext) {
		t.Errorf("empty ciphertext: err = %v, want ErrEmptyCiphertext", err)
	}
	if _, err := enc.Decrypt("not base64!!"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("bad encoding: err = %v, want ErrInvalidCiphertext", err)
	}
	if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("short"))); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("truncated: err = %v, want ErrCiphertextTooShort", err)
	}
}

func TestCredentialEncryptorRejectsTampering(t *testing.T) {
	enc, err := NewCredentialEncryptor(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	ciphertext, err := enc.Encrypt("api-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := enc.Decrypt(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("tampered: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestCredentialEncryptorDifferentSecrets(t *testing.T) {
	a, err := NewCredentialEncryptor(strings.Repeat("a", 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	b, err := NewCredentialEncryptor(strings.Repeat("b", 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	ciphertext, err := a.Encrypt("api-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := b.Decrypt(ciphertext); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("cross-secret decrypt: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "****"},
		{"abcd", "****"},
		{"supersecretkey", "****...tkey"},
	}
	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
