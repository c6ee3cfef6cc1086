// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package models

import "time"

// SyncDirection describes which way changes flow for a mapping.
type SyncDirection string

const (
	DirectionInbound       SyncDirection = "inbound"
	DirectionOutbound      SyncDirection = "outbound"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// MappingOrigin records how a mapping came to exist.
type MappingOrigin string

const (
	MappingOriginManual    MappingOrigin = "manual"
	MappingOriginSuggested MappingOrigin = "suggested"
	MappingOriginSync      MappingOrigin = "sync"
)

// EntityMapping is the persistent link between a local entity and its
// counterpart in one external system. Uniqueness is enforced at the
// datastore: one external id per (system, local id) and vice versa, soft
// deletes excluded.
type EntityMapping struct {
	ID         int64  `json:"id"`
	System     string `json:"system"`      // external system name
	EntityType string `json:"entity_type"` // room_type, reservation, customer
	LocalID    int64  `json:"local_id"`
	ExternalID string `json:"external_id"`

	Direction SyncDirection `json:"direction"`
	Origin    MappingOrigin `json:"origin"`

	// Conflict marks the mapping as needing manual review; ConflictDetail
	// holds the serialized field-diff list from conflict detection.
	Conflict       bool   `json:"conflict"`
	ConflictDetail string `json:"conflict_detail,omitempty"`

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"` // soft delete on unmap

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entity type names used in mapping rows.
const (
	EntityRoomType    = "room_type"
	EntityReservation = "reservation"
	EntityCustomer    = "customer"
)

// MappingSuggestion is an auto-suggested room-type match awaiting operator
// confirmation. Confirming one creates an EntityMapping with origin
// "suggested".
type MappingSuggestion struct {
	ID           int64     `json:"id"`
	System       string    `json:"system"`
	LocalID      int64     `json:"local_id"`
	ExternalID   string    `json:"external_id"`
	ExternalName string    `json:"external_name"`
	Score        float64   `json:"score"` // 0..1 similarity
	CreatedAt    time.Time `json:"created_at"`
}
