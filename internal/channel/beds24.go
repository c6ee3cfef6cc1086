// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// Beds24Adapter integrates the Beds24 channel manager. Beds24 wraps create
// responses in `{"new":{...}}` and list responses in a bare array; both go
// through the shared shape matchers.
type Beds24Adapter struct {
	client     *Client
	propertyID string
}

// NewBeds24Adapter builds the Beds24 adapter over a resilient client.
func NewBeds24Adapter(client *Client) *Beds24Adapter {
	return &Beds24Adapter{client: client, propertyID: client.propertyID}
}

func (a *Beds24Adapter) System() string       { return a.client.System() }
func (a *Beds24Adapter) BreakerState() string { return a.client.BreakerState() }

type beds24BookingRequest struct {
	PropKey string          `json:"propKey"`
	Booking *BookingPayload `json:"booking"`
}

func (a *Beds24Adapter) CreateBooking(ctx context.Context, b *BookingPayload) (string, error) {
	body, err := a.client.Request(ctx, http.MethodPost, "/json/setBooking",
		beds24BookingRequest{PropKey: a.propertyID, Booking: b})
	if err != nil {
		return "", err
	}
	return ExtractBookingID(a.System(), body)
}

func (a *Beds24Adapter) UpdateBooking(ctx context.Context, externalID string, b *BookingPayload) error {
	req := struct {
		beds24BookingRequest
		BookID string `json:"bookId"`
	}{
		beds24BookingRequest: beds24BookingRequest{PropKey: a.propertyID, Booking: b},
		BookID:               externalID,
	}
	_, err := a.client.Request(ctx, http.MethodPost, "/json/setBooking", req)
	return err
}

func (a *Beds24Adapter) CancelBooking(ctx context.Context, externalID string) error {
	req := struct {
		PropKey string `json:"propKey"`
		BookID  string `json:"bookId"`
		Status  int    `json:"status"`
	}{PropKey: a.propertyID, BookID: externalID, Status: MapLocalStatus(models.ReservationStatusCancelled)}
	_, err := a.client.Request(ctx, http.MethodPost, "/json/setBooking", req)
	return err
}

type beds24Booking struct {
	BookID    json.Number `json:"bookId"`
	RoomID    string      `json:"roomId"`
	UnitID    string      `json:"unitId"`
	Arrival   string      `json:"arrival"`
	Departure string      `json:"departure"`
	NumAdult  int         `json:"numAdult"`
	NumChild  int         `json:"numChild"`
	Status    int         `json:"status"`
	PayStatus int         `json:"payStatus"`
	Price     float64     `json:"price"`
	Currency  string      `json:"currency"`
	Referer   string      `json:"referer"`
	RefererID string      `json:"refererId"`
	Notes     string      `json:"notes"`

	GuestFirstName string `json:"guestFirstName"`
	GuestName      string `json:"guestName"`
	GuestEmail     string `json:"guestEmail"`
	GuestPhone     string `json:"guestPhone"`
	GuestCountry   string `json:"guestCountry"`
}

func (a *Beds24Adapter) ListBookings(ctx context.Context, from, to string) ([]models.ExternalBooking, error) {
	req := struct {
		PropKey       string `json:"propKey"`
		ArrivalFrom   string `json:"arrivalFrom"`
		DepartureTo   string `json:"departureTo"`
		IncludeGuests bool   `json:"includeInvoice"`
	}{PropKey: a.propertyID, ArrivalFrom: from, DepartureTo: to, IncludeGuests: true}

	body, err := a.client.Request(ctx, http.MethodPost, "/json/getBookings", req)
	if err != nil {
		return nil, err
	}

	var raw []beds24Booking
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ShapeError{System: a.System(), Reason: fmt.Sprintf("booking list: %v", err), Raw: string(body)}
	}

	out := make([]models.ExternalBooking, 0, len(raw))
	for _, b := range raw {
		out = append(out, models.ExternalBooking{
			ID:        b.BookID.String(),
			RoomID:    b.RoomID,
			UnitID:    b.UnitID,
			CheckIn:   b.Arrival,
			CheckOut:  b.Departure,
			Adults:    b.NumAdult,
			Children:  b.NumChild,
			Status:    b.Status,
			Payment:   b.PayStatus,
			Amount:    b.Price,
			Currency:  b.Currency,
			Channel:   b.Referer,
			Reference: b.RefererID,
			Notes:     b.Notes,
			Customer: models.ExternalCustomer{
				FirstName: b.GuestFirstName,
				LastName:  b.GuestName,
				Email:     b.GuestEmail,
				Phone:     b.GuestPhone,
				Country:   b.GuestCountry,
			},
		})
	}
	return out, nil
}

type beds24Room struct {
	RoomID   json.Number `json:"roomId"`
	Name     string      `json:"name"`
	RoomType string      `json:"roomType"`
	Price    float64     `json:"price"`
	Floor    int         `json:"floor"`
	MaxGuest int         `json:"maxGuest"`
	Qty      int         `json:"qty"`
	Features []string    `json:"features"`
}

func (a *Beds24Adapter) ListRooms(ctx context.Context) ([]models.ExternalRoom, error) {
	req := struct {
		PropKey string `json:"propKey"`
	}{PropKey: a.propertyID}

	body, err := a.client.Request(ctx, http.MethodPost, "/json/getRooms", req)
	if err != nil {
		return nil, err
	}
	return a.decodeRooms(body)
}

func (a *Beds24Adapter) ListPropertyUnits(ctx context.Context) ([]models.ExternalRoom, error) {
	req := struct {
		PropKey      string `json:"propKey"`
		IncludeRooms bool   `json:"includeRooms"`
	}{PropKey: a.propertyID, IncludeRooms: true}

	body, err := a.client.Request(ctx, http.MethodPost, "/json/getProperty", req)
	if err != nil {
		return nil, err
	}

	// The property endpoint nests units under "roomTypes".
	var wrapper struct {
		RoomTypes json.RawMessage `json:"roomTypes"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.RoomTypes) > 0 {
		return a.decodeRooms(wrapper.RoomTypes)
	}
	return a.decodeRooms(body)
}

func (a *Beds24Adapter) decodeRooms(raw []byte) ([]models.ExternalRoom, error) {
	var rooms []beds24Room
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return nil, &ShapeError{System: a.System(), Reason: fmt.Sprintf("room list: %v", err), Raw: string(raw)}
	}

	out := make([]models.ExternalRoom, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, models.ExternalRoom{
			ID:        r.RoomID.String(),
			Name:      r.Name,
			Type:      r.RoomType,
			Price:     r.Price,
			Floor:     r.Floor,
			MaxGuests: r.MaxGuest,
			Quantity:  r.Qty,
			Features:  r.Features,
		})
	}
	return out, nil
}

func (a *Beds24Adapter) PushAvailability(ctx context.Context, updates []AvailabilityUpdate) error {
	req := struct {
		PropKey string               `json:"propKey"`
		Dates   []AvailabilityUpdate `json:"dates"`
	}{PropKey: a.propertyID, Dates: updates}
	_, err := a.client.Request(ctx, http.MethodPost, "/json/setRoomDates", req)
	return err
}

func (a *Beds24Adapter) PushRates(ctx context.Context, updates []RateUpdate) error {
	req := struct {
		PropKey string       `json:"propKey"`
		Rates   []RateUpdate `json:"rates"`
	}{PropKey: a.propertyID, Rates: updates}
	_, err := a.client.Request(ctx, http.MethodPost, "/json/setRates", req)
	return err
}
