// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"errors"
	"testing"
)

func TestExtractBookingID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare array", raw: `[{"id": "123"}]`, want: "123"},
		{name: "bare array numeric id", raw: `[{"bookId": 456}]`, want: "456"},
		{name: "data wrapper", raw: `{"data":[{"id":"789"}]}`, want: "789"},
		{name: "new wrapper", raw: `{"new":{"bookId":"42"}}`, want: "42"},
		{name: "info wrapper", raw: `{"info":[{"booking_id":"x9"}]}`, want: "x9"},
		{name: "bare object", raw: `{"id":"55","status":1}`, want: "55"},
		{name: "bare object bookingId", raw: `{"bookingId": 7}`, want: "7"},

		{name: "empty response", raw: ``, wantErr: true},
		{name: "empty array", raw: `[]`, wantErr: true},
		{name: "multi-element array is ambiguous", raw: `[{"id":"1"},{"id":"2"}]`, wantErr: true},
		{name: "object without id", raw: `{"status":"ok"}`, wantErr: true},
		{name: "data wrapper without ids", raw: `{"data":[{"status":1}]}`, wantErr: true},
		{name: "scalar", raw: `42`, wantErr: true},
		{name: "garbage", raw: `not json at all`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBookingID("beds24", []byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got id %q, want error", got)
				}
				var shapeErr *ShapeError
				if !errors.As(err, &shapeErr) {
					t.Fatalf("err = %T, want *ShapeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("id = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBookingIDWrapperPrecedence(t *testing.T) {
	// A wrapper whose payload carries an id must win over reading the
	// wrapper object itself as a booking.
	raw := `{"id":"outer","new":{"id":"inner"}}`
	got, err := ExtractBookingID("beds24", []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "inner" {
		t.Errorf("id = %q, want the wrapped %q", got, "inner")
	}
}
