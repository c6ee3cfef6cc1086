// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package models

// ExternalBooking is a channel-manager's canonical reservation shape as
// fetched from its API. It is read-only: local code never mutates it, only
// normalizes it into a NormalizedBooking for comparison and upsert.
type ExternalBooking struct {
	ID        string  `json:"id"`
	RoomID    string  `json:"room_id,omitempty"`
	UnitID    string  `json:"unit_id,omitempty"`
	CheckIn   string  `json:"check_in"`  // date as delivered by the API
	CheckOut  string  `json:"check_out"` // date as delivered by the API
	Adults    int     `json:"adults"`
	Children  int     `json:"children"`
	Status    int     `json:"status"`  // external status code
	Payment   int     `json:"payment"` // external payment-state code
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	Channel   string  `json:"channel,omitempty"` // external channel/source tag
	Reference string  `json:"reference,omitempty"`
	Notes     string  `json:"notes,omitempty"`

	Customer ExternalCustomer `json:"customer"`
}

// ExternalCustomer is the guest sub-record embedded in an external booking.
type ExternalCustomer struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}

// ExternalRoom is one rentable unit or room type as listed by a
// channel-manager API. Depending on the endpoint used, a record may describe
// a single physical unit or an already-aggregated type.
type ExternalRoom struct {
	ID        string   `json:"id"`
	TypeID    string   `json:"type_id,omitempty"`
	Name      string   `json:"name"`
	Type      string   `json:"type"` // e.g. "double", "suite"
	Price     float64  `json:"price"`
	Currency  string   `json:"currency,omitempty"`
	Floor     int      `json:"floor,omitempty"`
	MaxGuests int      `json:"max_guests,omitempty"`
	Quantity  int      `json:"quantity,omitempty"` // >0 when the API aggregates
	Features  []string `json:"features,omitempty"`
}

// NormalizedBooking is an external booking translated into local vocabulary.
// It is the only form in which external data is compared against or written
// into local reservations.
type NormalizedBooking struct {
	ExternalID     string
	CheckIn        string // ISO YYYY-MM-DD
	CheckOut       string // ISO YYYY-MM-DD
	Adults         int
	Children       int
	Status         ReservationStatus
	PaymentStatus  PaymentStatus
	Source         BookingSource
	TotalAmount    float64
	Currency       string
	Notes          string
	Guest          Guest
	ExternalRoomID string
}

// FieldDiff is one field-level difference between an external booking and
// the local reservation it maps to. Conflict detection always returns the
// full list, never a bare boolean, because the list is what reconciliation
// and manual-review surfaces display.
type FieldDiff struct {
	Field    string `json:"field"`
	Local    string `json:"local"`
	External string `json:"external"`
}
