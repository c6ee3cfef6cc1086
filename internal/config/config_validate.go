// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// Validation errors surfaced to the operator. These are configuration
// errors: fatal, never retried.
var (
	ErrNoSystemsEnabled    = errors.New("no external systems enabled")
	ErrMissingCredential   = errors.New("missing credential for enabled system")
	ErrMissingBaseURL      = errors.New("missing base URL for enabled system")
	ErrMissingPropertyID   = errors.New("missing property id for enabled system")
	ErrWeakCredentialSecret = errors.New("security.credential_secret must be at least 32 characters")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints via struct tags, then cross-field
// rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if len(c.Security.CredentialSecret) > 0 && len(c.Security.CredentialSecret) < 32 {
		return ErrWeakCredentialSecret
	}

	for _, system := range c.EnabledSystems() {
		if err := c.validateChannel(system, c.Channel(system)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateChannel(system string, ch *ChannelConfig) error {
	if ch.BaseURL == "" {
		return fmt.Errorf("%w: %s", ErrMissingBaseURL, system)
	}
	parsed, err := url.Parse(ch.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid base URL for %s: %q", system, ch.BaseURL)
	}
	if ch.PropertyID == "" {
		return fmt.Errorf("%w: %s", ErrMissingPropertyID, system)
	}
	if ch.CredentialCiphertext == "" {
		return fmt.Errorf("%w: %s", ErrMissingCredential, system)
	}
	if ch.CredentialCiphertext != "" && c.Security.CredentialSecret == "" {
		return fmt.Errorf("security.credential_secret required to decrypt %s credential", system)
	}
	if ch.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%s: retry.max_attempts must be at least 1", system)
	}
	if ch.Retry.Multiplier < 1 {
		return fmt.Errorf("%s: retry.multiplier must be at least 1", system)
	}
	if ch.RateLimit.Capacity <= 0 || ch.RateLimit.RefillPerSecond <= 0 {
		return fmt.Errorf("%s: rate limit capacity and refill rate must be positive", system)
	}
	if ch.Breaker.FailureThreshold == 0 || ch.Breaker.HalfOpenSuccesses == 0 {
		return fmt.Errorf("%s: breaker thresholds must be positive", system)
	}
	return nil
}
