// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"math"
	"testing"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

func TestCompositeKeyGrouper(t *testing.T) {
	grouper := NewCompositeKeyGrouper()

	t.Run("similar units merge into one type", func(t *testing.T) {
		prices := []float64{102, 98, 101, 99, 100}
		rooms := make([]models.ExternalRoom, 0, len(prices))
		for i, p := range prices {
			rooms = append(rooms, models.ExternalRoom{
				ID:    string(rune('a' + i)),
				Type:  "double",
				Price: p,
				Floor: 2,
			})
		}

		groups := grouper.Group(rooms)
		if len(groups) != 1 {
			t.Fatalf("groups = %d, want 1", len(groups))
		}
		g := groups[0]
		if g.Quantity != 5 {
			t.Errorf("quantity = %d, want 5", g.Quantity)
		}
		if math.Abs(g.Price-100) > 0.001 {
			t.Errorf("price = %v, want mean 100", g.Price)
		}
		if len(g.UnitIDs) != 5 {
			t.Errorf("unit ids = %v, want all 5", g.UnitIDs)
		}
	})

	t.Run("different floors split", func(t *testing.T) {
		rooms := []models.ExternalRoom{
			{ID: "1", Type: "double", Price: 100, Floor: 1},
			{ID: "2", Type: "double", Price: 100, Floor: 2},
		}
		if groups := grouper.Group(rooms); len(groups) != 2 {
			t.Errorf("groups = %d, want 2 (floor is part of the key)", len(groups))
		}
	})

	t.Run("distant prices split", func(t *testing.T) {
		rooms := []models.ExternalRoom{
			{ID: "1", Type: "double", Price: 80, Floor: 1},
			{ID: "2", Type: "double", Price: 150, Floor: 1},
		}
		if groups := grouper.Group(rooms); len(groups) != 2 {
			t.Errorf("groups = %d, want 2 (price buckets differ)", len(groups))
		}
	})

	t.Run("pre-aggregated quantity is honored", func(t *testing.T) {
		rooms := []models.ExternalRoom{
			{ID: "1", Type: "suite", Price: 200, Quantity: 3},
			{ID: "2", Type: "suite", Price: 200},
		}
		groups := grouper.Group(rooms)
		if len(groups) != 1 {
			t.Fatalf("groups = %d, want 1", len(groups))
		}
		if groups[0].Quantity != 4 {
			t.Errorf("quantity = %d, want 4", groups[0].Quantity)
		}
	})

	t.Run("features deduplicate and sort", func(t *testing.T) {
		rooms := []models.ExternalRoom{
			{ID: "1", Type: "double", Price: 100, Features: []string{"WiFi", "balcony"}},
			{ID: "2", Type: "double", Price: 100, Features: []string{"wifi", "aircon"}},
		}
		groups := grouper.Group(rooms)
		if len(groups) != 1 {
			t.Fatalf("groups = %d, want 1", len(groups))
		}
		want := []string{"aircon", "balcony", "wifi"}
		got := groups[0].Features
		if len(got) != len(want) {
			t.Fatalf("features = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("features = %v, want %v", got, want)
				break
			}
		}
	})

	t.Run("deterministic across reruns", func(t *testing.T) {
		rooms := []models.ExternalRoom{
			{ID: "b", Type: "single", Price: 60, Floor: 1},
			{ID: "a", Type: "double", Price: 100, Floor: 2},
			{ID: "c", Type: "suite", Price: 250, Floor: 3},
		}
		first := grouper.Group(rooms)
		second := grouper.Group(rooms)
		if len(first) != len(second) {
			t.Fatalf("rerun changed group count: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].Name != second[i].Name {
				t.Errorf("rerun changed order: %s vs %s", first[i].Name, second[i].Name)
			}
		}
	})
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Double Room", "double room", 1.0, 1.0},
		{"Double Deluxe", "Double Standard", 0.2, 0.5},
		{"Suite", "Penthouse", 0, 0},
		{"", "Double", 0, 0},
	}
	for _, tt := range tests {
		got := nameSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("nameSimilarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
