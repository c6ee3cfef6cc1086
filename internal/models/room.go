// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package models

import "time"

// RoomType is a bookable category of rooms (e.g. "Double", "Suite").
// Channel managers sell room types, not individual rooms, so this is the
// unit that gets mapped to external inventory.
type RoomType struct {
	ID         int64  `json:"id"`
	PropertyID string `json:"property_id"`
	Name       string `json:"name"`

	Quantity  int     `json:"quantity"` // number of physical units
	BasePrice float64 `json:"base_price"`
	Currency  string  `json:"currency"`

	MaxAdults   int `json:"max_adults"`
	MaxChildren int `json:"max_children"`
	Floor       int `json:"floor,omitempty"`

	Features string `json:"features,omitempty"` // comma-separated amenity list

	// ExternalUnitIDs holds the external per-unit identifiers aggregated into
	// this room type during pull-side grouping.
	ExternalUnitIDs string `json:"external_unit_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room is a physical unit belonging to a room type.
type Room struct {
	ID         int64     `json:"id"`
	RoomTypeID int64     `json:"room_type_id"`
	Number     string    `json:"number"`
	Floor      int       `json:"floor"`
	OutOfOrder bool      `json:"out_of_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Guest is the local guest record attached to reservations.
type Guest struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
