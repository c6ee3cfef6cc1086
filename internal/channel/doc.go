// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

// Package channel is the synchronization engine core: resilient per-system
// API clients (token-bucket rate limiting, circuit breaking, bounded
// exponential retry), normalization between local and external booking
// vocabularies, conflict detection, and the push/pull/full-sync services
// that move reservations and room inventory in both directions.
//
// Each enabled external system gets its own Adapter wrapping one Client;
// breaker and limiter state is per-client and never shared across systems.
// Sync services return structured SyncResults and never propagate raw
// errors to callers.
package channel
