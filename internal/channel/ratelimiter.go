// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
)

// RateLimiter throttles outbound calls to one external system with a token
// bucket. Refill is lazy: tokens accrue from elapsed wall-clock time at each
// check, never from a background timer, so an idle limiter costs nothing and
// callers never block inside it.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter with the configured burst capacity and
// steady refill rate. Zero or negative values fall back to a conservative
// 1 req/s with a burst of 1 rather than an unlimited limiter.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	refill := cfg.RefillPerSecond
	if refill <= 0 {
		refill = 1
	}
	burst := int(cfg.Capacity)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(refill), burst),
	}
}

// TryConsume takes one token if available. It never waits: on false the
// caller decides whether to fail fast or queue the work.
func (rl *RateLimiter) TryConsume() bool {
	return rl.limiter.Allow()
}

// TimeUntilNextToken reports how long until one token will be available.
// Zero means a token is available now. The reservation taken to measure the
// delay is cancelled immediately so the probe consumes nothing.
func (rl *RateLimiter) TimeUntilNextToken() time.Duration {
	r := rl.limiter.Reserve()
	delay := r.Delay()
	r.CancelAt(time.Now())
	if delay < 0 {
		return 0
	}
	return delay
}
