// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"testing"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

func TestMapExternalStatus(t *testing.T) {
	tests := []struct {
		code int
		want models.ReservationStatus
	}{
		{0, models.ReservationStatusPending},
		{1, models.ReservationStatusConfirmed},
		{2, models.ReservationStatusConfirmed},
		{3, models.ReservationStatusCancelled},
		{4, models.ReservationStatusCheckedIn},
		{5, models.ReservationStatusCheckedOut},
		{6, models.ReservationStatusNoShow},
		{99, models.ReservationStatusPending}, // unknown never fails
		{-1, models.ReservationStatusPending},
	}
	for _, tt := range tests {
		if got := MapExternalStatus(tt.code); got != tt.want {
			t.Errorf("MapExternalStatus(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestMapExternalSource(t *testing.T) {
	tests := []struct {
		channel string
		want    models.BookingSource
	}{
		{"booking.com", models.SourceBookingCom},
		{"Booking", models.SourceBookingCom},
		{"  airbnb  ", models.SourceAirbnb},
		{"EXPEDIA", models.SourceExpedia},
		{"direct", models.SourceDirect},
		{"some-new-ota", models.SourceOther},
		{"", models.SourceOther},
	}
	for _, tt := range tests {
		if got := MapExternalSource(tt.channel); got != tt.want {
			t.Errorf("MapExternalSource(%q) = %s, want %s", tt.channel, got, tt.want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "2026-06-01", want: "2026-06-01"},
		{raw: "2026-06-01T14:30:00Z", want: "2026-06-01"},
		{raw: "2026-06-01 14:30:00", want: "2026-06-01"},
		{raw: "01/06/2026", want: "2026-06-01"},
		{raw: "20260601", want: "2026-06-01"},
		{raw: "  2026-06-01  ", want: "2026-06-01"},
		{raw: "", wantErr: true},
		{raw: "next tuesday", wantErr: true},
		{raw: "2026-13-45", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeDate(%q) = %q, want error", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeDate(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeBooking(t *testing.T) {
	booking := &models.ExternalBooking{
		ID:       "555",
		RoomID:   "R-12",
		CheckIn:  "2026-06-01",
		CheckOut: "2026-06-03",
		Adults:   2,
		Status:   1,
		Payment:  2,
		Amount:   200,
		Channel:  "booking.com",
		Customer: models.ExternalCustomer{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		},
	}

	got, err := NormalizeBooking(booking)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Status != models.ReservationStatusConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
	if got.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("payment = %s, want paid", got.PaymentStatus)
	}
	if got.Source != models.SourceBookingCom {
		t.Errorf("source = %s, want booking.com", got.Source)
	}
	if got.ExternalRoomID != "R-12" {
		t.Errorf("room = %s, want R-12", got.ExternalRoomID)
	}
	if got.Guest.Email != "ada@example.com" {
		t.Errorf("guest email = %s", got.Guest.Email)
	}

	t.Run("unit id fallback", func(t *testing.T) {
		b := *booking
		b.RoomID = ""
		b.UnitID = "U-3"
		got, err := NormalizeBooking(&b)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if got.ExternalRoomID != "U-3" {
			t.Errorf("room = %s, want U-3", got.ExternalRoomID)
		}
	})

	t.Run("bad date fails loudly", func(t *testing.T) {
		b := *booking
		b.CheckIn = "whenever"
		if _, err := NormalizeBooking(&b); err == nil {
			t.Error("want error for unparseable check-in")
		}
	})
}
