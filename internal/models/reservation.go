// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package models

import "time"

// ReservationStatus is the local lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationStatusPending    ReservationStatus = "pending"
	ReservationStatusConfirmed  ReservationStatus = "confirmed"
	ReservationStatusCheckedIn  ReservationStatus = "checked_in"
	ReservationStatusCheckedOut ReservationStatus = "checked_out"
	ReservationStatusCancelled  ReservationStatus = "cancelled"
	ReservationStatusNoShow     ReservationStatus = "no_show"
)

// PaymentStatus is the local payment state of a reservation.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusDeposit  PaymentStatus = "deposit"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// BookingSource identifies where a reservation originated.
type BookingSource string

const (
	SourceDirect     BookingSource = "direct"
	SourceBookingCom BookingSource = "booking.com"
	SourceExpedia    BookingSource = "expedia"
	SourceAirbnb     BookingSource = "airbnb"
	SourceAgoda      BookingSource = "agoda"
	SourceBeds24     BookingSource = "beds24"
	SourceChannex    BookingSource = "channex"
	SourceOther      BookingSource = "other"
)

// Reservation is the local canonical booking record.
type Reservation struct {
	ID         int64  `json:"id"`
	PropertyID string `json:"property_id"`
	RoomTypeID int64  `json:"room_type_id"`
	GuestID    int64  `json:"guest_id"`

	CheckIn  string `json:"check_in"`  // ISO date YYYY-MM-DD
	CheckOut string `json:"check_out"` // ISO date YYYY-MM-DD

	Adults   int `json:"adults"`
	Children int `json:"children"`

	Status        ReservationStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Source        BookingSource     `json:"source"`

	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`
	Notes       string  `json:"notes,omitempty"`

	// ExternalID links this reservation to a channel-manager booking. Set on
	// pull ingestion and after the first successful push; presence of a
	// non-empty value makes subsequent pushes updates instead of creates.
	ExternalID     string `json:"external_id,omitempty"`
	ExternalSystem string `json:"external_system,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Nights returns the stay length in nights, or 0 when dates are malformed.
func (r *Reservation) Nights() int {
	in, err := time.Parse("2006-01-02", r.CheckIn)
	if err != nil {
		return 0
	}
	out, err := time.Parse("2006-01-02", r.CheckOut)
	if err != nil {
		return 0
	}
	nights := int(out.Sub(in).Hours() / 24)
	if nights < 0 {
		return 0
	}
	return nights
}

// OriginatedFrom reports whether the reservation was ingested from the given
// external system. Pushing such a reservation back to its origin would echo
// the booking, so push services short-circuit on this check.
func (r *Reservation) OriginatedFrom(system string) bool {
	return r.ExternalSystem == system && r.ExternalID != "" && r.Source != SourceDirect
}

// IsActive reports whether the reservation still occupies inventory.
func (r *Reservation) IsActive() bool {
	switch r.Status {
	case ReservationStatusCancelled, ReservationStatusNoShow, ReservationStatusCheckedOut:
		return false
	default:
		return true
	}
}
