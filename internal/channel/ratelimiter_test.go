// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"testing"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst then exhaustion", func(t *testing.T) {
		rl := NewRateLimiter(config.RateLimitConfig{Capacity: 3, RefillPerSecond: 100})
		for i := 0; i < 3; i++ {
			if !rl.TryConsume() {
				t.Fatalf("token %d unavailable within burst", i)
			}
		}
		if rl.TryConsume() {
			t.Error("token available after burst exhausted")
		}
	})

	t.Run("recovers after waiting", func(t *testing.T) {
		rl := NewRateLimiter(config.RateLimitConfig{Capacity: 1, RefillPerSecond: 50})
		if !rl.TryConsume() {
			t.Fatal("initial token unavailable")
		}
		if rl.TryConsume() {
			t.Fatal("second token available immediately")
		}

		wait := rl.TimeUntilNextToken()
		if wait <= 0 {
			t.Fatalf("wait = %v, want positive", wait)
		}
		time.Sleep(wait + 5*time.Millisecond)
		if !rl.TryConsume() {
			t.Error("token unavailable after waiting the advertised delay")
		}
	})

	t.Run("zero wait when token available", func(t *testing.T) {
		rl := NewRateLimiter(config.RateLimitConfig{Capacity: 5, RefillPerSecond: 1})
		if wait := rl.TimeUntilNextToken(); wait != 0 {
			t.Errorf("wait = %v, want 0 with tokens in the bucket", wait)
		}
		// The probe must not consume a token.
		if !rl.TryConsume() {
			t.Error("probe consumed a token")
		}
	})

	t.Run("degenerate config falls back to safe limits", func(t *testing.T) {
		rl := NewRateLimiter(config.RateLimitConfig{})
		if !rl.TryConsume() {
			t.Error("fallback limiter refused its single burst token")
		}
		if rl.TryConsume() {
			t.Error("fallback limiter allowed a second immediate token")
		}
	})
}
