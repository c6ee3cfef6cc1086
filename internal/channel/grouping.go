// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// RoomGroup is one synthesized room type aggregated from raw external units.
type RoomGroup struct {
	Name      string
	Type      string
	Quantity  int
	Price     float64 // mean unit price of the group
	Floor     int
	MaxGuests int
	Features  []string
	UnitIDs   []string
}

// RoomGrouper turns a flat unit listing into room-type groups. The default
// heuristic (price bucket + floor) has a false-merge risk; keeping it behind
// this interface lets an explicit mapping table replace it without touching
// the pull service.
type RoomGrouper interface {
	Group(rooms []models.ExternalRoom) []RoomGroup
}

// priceBucketSize is the rounding width for the grouping key. Units priced
// 98..102 all land in the 100 bucket and merge into one type.
const priceBucketSize = 10

// CompositeKeyGrouper groups units by (type, rounded price bucket, floor).
type CompositeKeyGrouper struct{}

// NewCompositeKeyGrouper returns the default grouping heuristic.
func NewCompositeKeyGrouper() *CompositeKeyGrouper {
	return &CompositeKeyGrouper{}
}

// Group aggregates unit count, mean price, features, and per-unit ids into
// one group per composite key. Rooms the API already aggregated
// (Quantity > 0) contribute their own quantity. Output order is
// deterministic (sorted by key) so reruns produce identical results.
func (g *CompositeKeyGrouper) Group(rooms []models.ExternalRoom) []RoomGroup {
	type bucket struct {
		group    RoomGroup
		priceSum float64
		units    int
		features map[string]struct{}
	}
	buckets := make(map[string]*bucket)

	for _, room := range rooms {
		key := groupKey(room)
		b, seen := buckets[key]
		if !seen {
			b = &bucket{
				group: RoomGroup{
					Name:  groupName(room),
					Type:  normalizeRoomType(room.Type),
					Floor: room.Floor,
				},
				features: make(map[string]struct{}),
			}
			buckets[key] = b
		}

		qty := room.Quantity
		if qty <= 0 {
			qty = 1
		}
		b.group.Quantity += qty
		b.priceSum += room.Price * float64(qty)
		b.units += qty
		if room.MaxGuests > b.group.MaxGuests {
			b.group.MaxGuests = room.MaxGuests
		}
		for _, f := range room.Features {
			b.features[strings.ToLower(strings.TrimSpace(f))] = struct{}{}
		}
		if room.ID != "" {
			b.group.UnitIDs = append(b.group.UnitIDs, room.ID)
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groups := make([]RoomGroup, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		if b.units > 0 {
			b.group.Price = b.priceSum / float64(b.units)
		}
		for f := range b.features {
			b.group.Features = append(b.group.Features, f)
		}
		sort.Strings(b.group.Features)
		sort.Strings(b.group.UnitIDs)
		groups = append(groups, b.group)
	}
	return groups
}

// groupKey builds the composite key: normalized type, price rounded to the
// nearest bucket, floor.
func groupKey(room models.ExternalRoom) string {
	return fmt.Sprintf("%s|%d|%d",
		normalizeRoomType(room.Type),
		roundToBucket(room.Price),
		room.Floor,
	)
}

func roundToBucket(price float64) int {
	return int(math.Round(price/priceBucketSize)) * priceBucketSize
}

func normalizeRoomType(t string) string {
	norm := strings.ToLower(strings.TrimSpace(t))
	if norm == "" {
		return "room"
	}
	return norm
}

// groupName derives the local room-type name for a group. Floor 0 rooms get
// the bare type name; elevated floors are disambiguated.
func groupName(room models.ExternalRoom) string {
	typ := normalizeRoomType(room.Type)
	name := strings.ToUpper(typ[:1]) + typ[1:]
	if room.Floor > 0 {
		return fmt.Sprintf("%s (floor %d)", name, room.Floor)
	}
	return name
}
