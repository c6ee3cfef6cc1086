// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/metrics"
)

// Breaker shields one external system from being hammered while it is
// failing. States: closed (normal), open (all calls rejected until the reset
// timeout elapses), half-open (a bounded number of trial calls; any failure
// reopens immediately, enough consecutive successes close).
//
// Each resilient client owns exactly one Breaker; state is per-process, not
// shared across workers. Centralizing breaker state in the datastore for
// horizontally scaled workers is a known follow-up, not done here.
type Breaker struct {
	name string
	cb   *gobreaker.TwoStepCircuitBreaker[struct{}]

	mu       sync.Mutex
	openedAt time.Time
	resetAt  time.Time
	timeout  time.Duration
}

// NewBreaker builds a breaker that opens after cfg.FailureThreshold
// consecutive failures, stays open for cfg.ResetTimeout, and closes again
// after cfg.HalfOpenSuccesses consecutive half-open successes.
func NewBreaker(system string, cfg config.BreakerConfig) *Breaker {
	b := &Breaker{name: system, timeout: cfg.ResetTimeout}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := cfg.HalfOpenSuccesses
	if maxRequests == 0 {
		maxRequests = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(system).Set(0)

	b.cb = gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        system,
		MaxRequests: maxRequests,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logging.Info().
				Str("system", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateOpen {
				b.mu.Lock()
				b.openedAt = time.Now()
				b.resetAt = b.openedAt.Add(b.timeout)
				b.mu.Unlock()
			}
		},
	})
	return b
}

// errUpstreamFailure feeds gobreaker's failure accounting; callers only ever
// see the typed channel errors, never this sentinel.
var errUpstreamFailure = errors.New("upstream call failed")

// CanProceed asks for permission to make one call. On rejection it returns
// a CircuitOpenError carrying when the circuit opened and when it will next
// admit a trial request. On success the returned done func must be called
// exactly once with the call's outcome.
func (b *Breaker) CanProceed() (done func(success bool), err error) {
	allow, err := b.cb.Allow()
	if err != nil {
		metrics.CircuitBreakerRejections.WithLabelValues(b.name).Inc()
		return nil, b.rejection()
	}
	return func(success bool) {
		if success {
			allow(nil)
			return
		}
		allow(errUpstreamFailure)
	}, nil
}

// FastFail reports an open circuit without reserving a call slot. It lets
// callers order the breaker check ahead of local gates that must not count
// as call outcomes.
func (b *Breaker) FastFail() error {
	if b.cb.State() != gobreaker.StateOpen {
		return nil
	}
	metrics.CircuitBreakerRejections.WithLabelValues(b.name).Inc()
	return b.rejection()
}

func (b *Breaker) rejection() *CircuitOpenError {
	b.mu.Lock()
	openedAt, resetAt := b.openedAt, b.resetAt
	b.mu.Unlock()
	return &CircuitOpenError{System: b.name, OpenedAt: openedAt, ResetAt: resetAt}
}

// State returns the current breaker state name for status surfaces.
func (b *Breaker) State() string {
	return breakerStateString(b.cb.State())
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
