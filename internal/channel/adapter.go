// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// BookingPayload is the outbound booking in external vocabulary, built by
// the push service from a local reservation, its guest, and the mapped
// external room id.
type BookingPayload struct {
	RoomID    string  `json:"roomId"`
	CheckIn   string  `json:"arrival"`
	CheckOut  string  `json:"departure"`
	Adults    int     `json:"numAdult"`
	Children  int     `json:"numChild"`
	Status    int     `json:"status"`
	Payment   int     `json:"payStatus"`
	Amount    float64 `json:"price"`
	Currency  string  `json:"currency,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Notes     string  `json:"notes,omitempty"`

	GuestFirstName string `json:"guestFirstName"`
	GuestLastName  string `json:"guestName"`
	GuestEmail     string `json:"guestEmail,omitempty"`
	GuestPhone     string `json:"guestPhone,omitempty"`
	GuestCountry   string `json:"guestCountry,omitempty"`
}

// AvailabilityUpdate sets the sellable unit count for one room type and day.
type AvailabilityUpdate struct {
	RoomID    string `json:"roomId"`
	Date      string `json:"date"` // ISO YYYY-MM-DD
	Available int    `json:"available"`
}

// RateUpdate sets the nightly price for one room type and day.
type RateUpdate struct {
	RoomID   string  `json:"roomId"`
	Date     string  `json:"date"` // ISO YYYY-MM-DD
	Rate     float64 `json:"rate"`
	Currency string  `json:"currency,omitempty"`
}

// Adapter is one external system's API surface in local terms. Each adapter
// owns a resilient Client; sync services speak only through this interface
// and never see system-specific endpoints or response shapes.
type Adapter interface {
	// System returns the adapter's external system name.
	System() string

	// BreakerState exposes the underlying circuit state for status surfaces.
	BreakerState() string

	// CreateBooking creates an external booking and returns its external id,
	// extracted shape-tolerantly from the response.
	CreateBooking(ctx context.Context, b *BookingPayload) (string, error)

	// UpdateBooking modifies an existing external booking.
	UpdateBooking(ctx context.Context, externalID string, b *BookingPayload) error

	// CancelBooking cancels an external booking.
	CancelBooking(ctx context.Context, externalID string) error

	// ListBookings fetches external bookings in a date range (ISO dates,
	// inclusive).
	ListBookings(ctx context.Context, from, to string) ([]models.ExternalBooking, error)

	// ListRooms fetches the dedicated room/room-type listing. Systems
	// without one return a ValidationError; the pull service falls through
	// to ListPropertyUnits.
	ListRooms(ctx context.Context) ([]models.ExternalRoom, error)

	// ListPropertyUnits fetches the generic property endpoint with unit
	// expansion, the second link of the room-discovery fallback chain.
	ListPropertyUnits(ctx context.Context) ([]models.ExternalRoom, error)

	// PushAvailability sends unit-count updates.
	PushAvailability(ctx context.Context, updates []AvailabilityUpdate) error

	// PushRates sends nightly price updates.
	PushRates(ctx context.Context, updates []RateUpdate) error
}
