// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

// Package models defines the domain types shared across the sync engine:
// local reservations, rooms and room types, guests, entity mappings against
// external systems, and the structured results produced by sync operations.
//
// External representations (ExternalBooking, ExternalRoom) are read-only
// snapshots of channel-manager state; they are never mutated locally except
// through normalization into comparison types.
package models
