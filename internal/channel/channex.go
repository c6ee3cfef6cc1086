// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// ChannexAdapter integrates the Channex channel manager. Channex is a
// conventional REST API: resources under /api/v1, responses wrapped in
// `{"data": ...}` with JSON-API style attribute objects.
type ChannexAdapter struct {
	client     *Client
	propertyID string
}

// NewChannexAdapter builds the Channex adapter over a resilient client.
func NewChannexAdapter(client *Client) *ChannexAdapter {
	return &ChannexAdapter{client: client, propertyID: client.propertyID}
}

func (a *ChannexAdapter) System() string       { return a.client.System() }
func (a *ChannexAdapter) BreakerState() string { return a.client.BreakerState() }

type channexBookingRequest struct {
	Booking struct {
		PropertyID string          `json:"property_id"`
		Payload    *BookingPayload `json:"attributes"`
	} `json:"booking"`
}

func newChannexBookingRequest(propertyID string, b *BookingPayload) channexBookingRequest {
	var req channexBookingRequest
	req.Booking.PropertyID = propertyID
	req.Booking.Payload = b
	return req
}

func (a *ChannexAdapter) CreateBooking(ctx context.Context, b *BookingPayload) (string, error) {
	body, err := a.client.Request(ctx, http.MethodPost, "/api/v1/bookings",
		newChannexBookingRequest(a.propertyID, b))
	if err != nil {
		return "", err
	}
	return ExtractBookingID(a.System(), body)
}

func (a *ChannexAdapter) UpdateBooking(ctx context.Context, externalID string, b *BookingPayload) error {
	_, err := a.client.Request(ctx, http.MethodPut, "/api/v1/bookings/"+externalID,
		newChannexBookingRequest(a.propertyID, b))
	return err
}

func (a *ChannexAdapter) CancelBooking(ctx context.Context, externalID string) error {
	_, err := a.client.Request(ctx, http.MethodDelete, "/api/v1/bookings/"+externalID, nil)
	return err
}

type channexBooking struct {
	ID         string `json:"id"`
	Attributes struct {
		RoomID    string  `json:"room_type_id"`
		Arrival   string  `json:"arrival_date"`
		Departure string  `json:"departure_date"`
		Adults    int     `json:"occupancy_adults"`
		Children  int     `json:"occupancy_children"`
		Status    int     `json:"status"`
		Payment   int     `json:"payment_status"`
		Amount    float64 `json:"total_amount"`
		Currency  string  `json:"currency"`
		Channel   string  `json:"ota_name"`
		Reference string  `json:"ota_reservation_code"`
		Notes     string  `json:"notes"`
		Customer  struct {
			Name    string `json:"name"`
			Surname string `json:"surname"`
			Email   string `json:"mail"`
			Phone   string `json:"phone"`
			Country string `json:"country"`
		} `json:"customer"`
	} `json:"attributes"`
}

func (a *ChannexAdapter) ListBookings(ctx context.Context, from, to string) ([]models.ExternalBooking, error) {
	query := url.Values{}
	query.Set("filter[property_id]", a.propertyID)
	query.Set("filter[arrival][gte]", from)
	query.Set("filter[arrival][lte]", to)

	body, err := a.client.Request(ctx, http.MethodGet, "/api/v1/bookings", nil, WithQuery(query))
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Data []channexBooking `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, &ShapeError{System: a.System(), Reason: fmt.Sprintf("booking list: %v", err), Raw: string(body)}
	}

	out := make([]models.ExternalBooking, 0, len(wrapper.Data))
	for _, b := range wrapper.Data {
		attr := b.Attributes
		out = append(out, models.ExternalBooking{
			ID:        b.ID,
			RoomID:    attr.RoomID,
			CheckIn:   attr.Arrival,
			CheckOut:  attr.Departure,
			Adults:    attr.Adults,
			Children:  attr.Children,
			Status:    attr.Status,
			Payment:   attr.Payment,
			Amount:    attr.Amount,
			Currency:  attr.Currency,
			Channel:   attr.Channel,
			Reference: attr.Reference,
			Notes:     attr.Notes,
			Customer: models.ExternalCustomer{
				FirstName: attr.Customer.Name,
				LastName:  attr.Customer.Surname,
				Email:     attr.Customer.Email,
				Phone:     attr.Customer.Phone,
				Country:   attr.Customer.Country,
			},
		})
	}
	return out, nil
}

type channexRoomType struct {
	ID         string `json:"id"`
	Attributes struct {
		Title      string   `json:"title"`
		Kind       string   `json:"room_kind"`
		Price      float64  `json:"default_rate"`
		Count      int      `json:"count_of_rooms"`
		MaxGuests  int      `json:"occ_adults"`
		Facilities []string `json:"facilities"`
	} `json:"attributes"`
}

func (a *ChannexAdapter) ListRooms(ctx context.Context) ([]models.ExternalRoom, error) {
	query := url.Values{}
	query.Set("filter[property_id]", a.propertyID)

	body, err := a.client.Request(ctx, http.MethodGet, "/api/v1/room_types", nil, WithQuery(query))
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Data []channexRoomType `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, &ShapeError{System: a.System(), Reason: fmt.Sprintf("room list: %v", err), Raw: string(body)}
	}

	out := make([]models.ExternalRoom, 0, len(wrapper.Data))
	for _, r := range wrapper.Data {
		out = append(out, models.ExternalRoom{
			ID:        r.ID,
			Name:      r.Attributes.Title,
			Type:      r.Attributes.Kind,
			Price:     r.Attributes.Price,
			MaxGuests: r.Attributes.MaxGuests,
			Quantity:  r.Attributes.Count,
			Features:  r.Attributes.Facilities,
		})
	}
	return out, nil
}

// ListPropertyUnits uses the property detail endpoint, which embeds room
// types, as the second link of the room-discovery chain.
func (a *ChannexAdapter) ListPropertyUnits(ctx context.Context) ([]models.ExternalRoom, error) {
	body, err := a.client.Request(ctx, http.MethodGet, "/api/v1/properties/"+a.propertyID, nil)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Data struct {
			Attributes struct {
				RoomTypes []channexRoomType `json:"room_types"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, &ShapeError{System: a.System(), Reason: fmt.Sprintf("property detail: %v", err), Raw: string(body)}
	}

	out := make([]models.ExternalRoom, 0, len(wrapper.Data.Attributes.RoomTypes))
	for _, r := range wrapper.Data.Attributes.RoomTypes {
		out = append(out, models.ExternalRoom{
			ID:        r.ID,
			Name:      r.Attributes.Title,
			Type:      r.Attributes.Kind,
			Price:     r.Attributes.Price,
			MaxGuests: r.Attributes.MaxGuests,
			Quantity:  r.Attributes.Count,
			Features:  r.Attributes.Facilities,
		})
	}
	return out, nil
}

func (a *ChannexAdapter) PushAvailability(ctx context.Context, updates []AvailabilityUpdate) error {
	req := struct {
		Values []AvailabilityUpdate `json:"values"`
	}{Values: updates}
	_, err := a.client.Request(ctx, http.MethodPost, "/api/v1/availability", req)
	return err
}

func (a *ChannexAdapter) PushRates(ctx context.Context, updates []RateUpdate) error {
	req := struct {
		Values []RateUpdate `json:"values"`
	}{Values: updates}
	_, err := a.client.Request(ctx, http.MethodPost, "/api/v1/restrictions", req)
	return err
}
