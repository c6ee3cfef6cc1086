// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"fmt"
	"strings"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// Status and payment translation tables. Pure data, no I/O. Unknown inputs
// never fail: statuses fall back to pending, payment to unpaid, sources to
// "other". The external system is the authority on its own vocabulary and
// unrecognized values must not break ingestion.

// externalStatusToLocal maps channel-manager numeric booking statuses to
// local reservation statuses. 0=request, 1=new/confirmed, 2=modified,
// 3=cancelled, 4=checked-in, 5=checked-out, 6=no-show.
var externalStatusToLocal = map[int]models.ReservationStatus{
	0: models.ReservationStatusPending,
	1: models.ReservationStatusConfirmed,
	2: models.ReservationStatusConfirmed,
	3: models.ReservationStatusCancelled,
	4: models.ReservationStatusCheckedIn,
	5: models.ReservationStatusCheckedOut,
	6: models.ReservationStatusNoShow,
}

var localStatusToExternal = map[models.ReservationStatus]int{
	models.ReservationStatusPending:    0,
	models.ReservationStatusConfirmed:  1,
	models.ReservationStatusCheckedIn:  4,
	models.ReservationStatusCheckedOut: 5,
	models.ReservationStatusCancelled:  3,
	models.ReservationStatusNoShow:     6,
}

// externalPaymentToLocal maps payment-state codes: 0=unpaid, 1=deposit,
// 2=paid in full, 3=refunded.
var externalPaymentToLocal = map[int]models.PaymentStatus{
	0: models.PaymentStatusUnpaid,
	1: models.PaymentStatusDeposit,
	2: models.PaymentStatusPaid,
	3: models.PaymentStatusRefunded,
}

var localPaymentToExternal = map[models.PaymentStatus]int{
	models.PaymentStatusUnpaid:   0,
	models.PaymentStatusDeposit:  1,
	models.PaymentStatusPaid:     2,
	models.PaymentStatusRefunded: 3,
}

// externalChannelToSource maps a channel/source tag, lower-cased, to the
// local source enum.
var externalChannelToSource = map[string]models.BookingSource{
	"direct":      models.SourceDirect,
	"booking":     models.SourceBookingCom,
	"booking.com": models.SourceBookingCom,
	"bookingcom":  models.SourceBookingCom,
	"expedia":     models.SourceExpedia,
	"airbnb":      models.SourceAirbnb,
	"agoda":       models.SourceAgoda,
	"beds24":      models.SourceBeds24,
	"channex":     models.SourceChannex,
}

// MapExternalStatus translates an external status code, defaulting unknown
// codes to pending rather than failing.
func MapExternalStatus(code int) models.ReservationStatus {
	if s, known := externalStatusToLocal[code]; known {
		return s
	}
	return models.ReservationStatusPending
}

// MapLocalStatus translates a local status to the external code vocabulary.
func MapLocalStatus(status models.ReservationStatus) int {
	if code, known := localStatusToExternal[status]; known {
		return code
	}
	return 0
}

// MapExternalPayment translates an external payment code, defaulting to
// unpaid.
func MapExternalPayment(code int) models.PaymentStatus {
	if p, known := externalPaymentToLocal[code]; known {
		return p
	}
	return models.PaymentStatusUnpaid
}

// MapLocalPayment translates a local payment status to the external code.
func MapLocalPayment(p models.PaymentStatus) int {
	if code, known := localPaymentToExternal[p]; known {
		return code
	}
	return 0
}

// MapExternalSource translates a channel tag to the local source enum with
// an explicit "other" fallback for anything unrecognized.
func MapExternalSource(channel string) models.BookingSource {
	if s, known := externalChannelToSource[strings.ToLower(strings.TrimSpace(channel))]; known {
		return s
	}
	return models.SourceOther
}

// dateLayouts are the formats accepted for external dates, tried in order.
// ISO dates pass through the first entry untouched.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"20060102",
}

// NormalizeDate parses an external date defensively and re-serializes it as
// ISO YYYY-MM-DD. Truly unparseable input fails loudly; silently shifting a
// check-in date would corrupt bookings.
func NormalizeDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unparseable date %q", raw)
}

// NormalizeBooking translates an external booking into local vocabulary.
// This is the only path by which external data reaches comparison and
// upsert logic.
func NormalizeBooking(b *models.ExternalBooking) (*models.NormalizedBooking, error) {
	checkIn, err := NormalizeDate(b.CheckIn)
	if err != nil {
		return nil, fmt.Errorf("booking %s check-in: %w", b.ID, err)
	}
	checkOut, err := NormalizeDate(b.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("booking %s check-out: %w", b.ID, err)
	}

	roomRef := b.RoomID
	if roomRef == "" {
		roomRef = b.UnitID
	}

	return &models.NormalizedBooking{
		ExternalID:     b.ID,
		CheckIn:        checkIn,
		CheckOut:       checkOut,
		Adults:         b.Adults,
		Children:       b.Children,
		Status:         MapExternalStatus(b.Status),
		PaymentStatus:  MapExternalPayment(b.Payment),
		Source:         MapExternalSource(b.Channel),
		TotalAmount:    b.Amount,
		Currency:       b.Currency,
		Notes:          b.Notes,
		ExternalRoomID: roomRef,
		Guest: models.Guest{
			FirstName: b.Customer.FirstName,
			LastName:  b.Customer.LastName,
			Email:     b.Customer.Email,
			Phone:     b.Customer.Phone,
			Country:   b.Customer.Country,
		},
	}, nil
}
