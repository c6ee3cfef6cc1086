// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"errors"
	"fmt"
	"time"
)

// Error codes carried on SyncResult.ErrorCode and used as metric labels.
const (
	CodeConfiguration  = "configuration_error"
	CodeAuthentication = "authentication_error"
	CodeRateLimit      = "rate_limit_error"
	CodeServer         = "server_error"
	CodeNetwork        = "network_error"
	CodeValidation     = "validation_error"
	CodeCircuitOpen    = "circuit_open"
	CodeNotMapped      = "not_mapped"
	CodeShape          = "response_shape_error"
)

// ConfigurationError means a credential, base URL, or property id is missing
// or malformed. Fatal: surfaced to the operator, never retried.
type ConfigurationError struct {
	System string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration invalid: %s", e.System, e.Reason)
}

// AuthenticationError means the external API rejected our credentials.
// Fatal, counts as a breaker failure, never retried.
type AuthenticationError struct {
	System     string
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed (status %d)", e.System, e.StatusCode)
}

// RateLimitError means either our local limiter has no tokens or the
// external API answered 429. RetryAfter carries the advertised (or locally
// computed) wait before the next attempt can succeed.
type RateLimitError struct {
	System     string
	RetryAfter time.Duration
	Local      bool // true when our own token bucket rejected the call
}

func (e *RateLimitError) Error() string {
	origin := "remote"
	if e.Local {
		origin = "local"
	}
	return fmt.Sprintf("%s rate limited (%s), retry after %s", e.System, origin, e.RetryAfter)
}

// ServerError is any 5xx answer from the external API. Retryable; counts as
// a breaker failure.
type ServerError struct {
	System     string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s server error %d: %s", e.System, e.StatusCode, e.Body)
}

// NetworkError wraps transport-level failures (DNS, connect, timeout).
// Retryable; counts as a breaker failure.
type NetworkError struct {
	System string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error: %v", e.System, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a 4xx answer for one item: the external API refused the
// payload. Fatal for that item, recorded per-item in the run error list,
// never retried, and not a breaker failure.
type ValidationError struct {
	System     string
	StatusCode int
	Body       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s rejected request (status %d): %s", e.System, e.StatusCode, e.Body)
}

// CircuitOpenError means the breaker rejected the call before any network
// activity. Not counted as a further failure: the circuit is already open.
type CircuitOpenError struct {
	System   string
	OpenedAt time.Time
	ResetAt  time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s circuit open since %s, resets at %s",
		e.System, e.OpenedAt.Format(time.RFC3339), e.ResetAt.Format(time.RFC3339))
}

// NotMappedError means an entity has no counterpart mapping for the target
// system. Push sets LocalID for local entities missing an external match;
// pull sets ExternalID for external references missing a local match. Both
// surface it as a specific failure so the operator knows to map the entity,
// not a generic error.
type NotMappedError struct {
	System     string
	EntityType string
	LocalID    int64
	ExternalID string
}

func (e *NotMappedError) Error() string {
	if e.ExternalID != "" {
		return fmt.Sprintf("%s %s %q is not mapped to a local entity",
			e.System, e.EntityType, e.ExternalID)
	}
	return fmt.Sprintf("%s %s %d is not mapped to an external entity",
		e.System, e.EntityType, e.LocalID)
}

// ShapeError means a response matched none of the known shapes (or an
// ambiguous one). Never guessed around: the raw prefix is kept for triage.
type ShapeError struct {
	System string
	Reason string
	Raw    string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s unrecognized response shape: %s (raw: %.120s)", e.System, e.Reason, e.Raw)
}

// ErrorCode maps an error from this package to its stable code. Unknown
// errors classify as network failures, the retry-safe default for transport
// paths.
func ErrorCode(err error) string {
	var (
		confErr  *ConfigurationError
		authErr  *AuthenticationError
		rateErr  *RateLimitError
		srvErr   *ServerError
		netErr   *NetworkError
		valErr   *ValidationError
		openErr  *CircuitOpenError
		mapErr   *NotMappedError
		shapeErr *ShapeError
	)
	switch {
	case errors.As(err, &confErr):
		return CodeConfiguration
	case errors.As(err, &authErr):
		return CodeAuthentication
	case errors.As(err, &rateErr):
		return CodeRateLimit
	case errors.As(err, &srvErr):
		return CodeServer
	case errors.As(err, &valErr):
		return CodeValidation
	case errors.As(err, &openErr):
		return CodeCircuitOpen
	case errors.As(err, &mapErr):
		return CodeNotMapped
	case errors.As(err, &shapeErr):
		return CodeShape
	case errors.As(err, &netErr):
		return CodeNetwork
	default:
		return CodeNetwork
	}
}

// IsRetryable reports whether an error warrants another attempt. Only
// server-side failures, transport failures, and rate limits are retryable;
// everything else either cannot succeed on retry or is handled by the
// breaker's own recovery cycle.
func IsRetryable(err error) bool {
	switch ErrorCode(err) {
	case CodeServer, CodeNetwork, CodeRateLimit:
		return true
	default:
		return false
	}
}

// countsAsBreakerFailure reports whether an error should push the circuit
// toward open. Client-side mistakes and local rate limiting do not; the
// external system is healthy in those cases.
func countsAsBreakerFailure(err error) bool {
	switch ErrorCode(err) {
	case CodeServer, CodeNetwork, CodeAuthentication:
		return true
	default:
		return false
	}
}
