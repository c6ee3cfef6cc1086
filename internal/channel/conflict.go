// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/lodgekeeper/lodgekeeper/internal/models"
)

// amountEpsilon is the tolerance for monetary comparisons. Channel managers
// round totals differently; sub-cent disagreement is noise, not a conflict.
const amountEpsilon = 0.01

// HasBookingChanged compares a normalized external booking against the local
// reservation it maps to and returns every field-level difference. An empty
// list means in sync. The list, not a boolean, is the contract: it is what
// reconciliation and the manual-review surface display to operators.
func HasBookingChanged(local *models.Reservation, external *models.NormalizedBooking) []models.FieldDiff {
	var diffs []models.FieldDiff

	if local.Status != external.Status {
		diffs = append(diffs, models.FieldDiff{
			Field:    "status",
			Local:    string(local.Status),
			External: string(external.Status),
		})
	}
	if local.PaymentStatus != external.PaymentStatus {
		diffs = append(diffs, models.FieldDiff{
			Field:    "payment_status",
			Local:    string(local.PaymentStatus),
			External: string(external.PaymentStatus),
		})
	}
	if local.CheckIn != external.CheckIn {
		diffs = append(diffs, models.FieldDiff{
			Field:    "check_in",
			Local:    local.CheckIn,
			External: external.CheckIn,
		})
	}
	if local.CheckOut != external.CheckOut {
		diffs = append(diffs, models.FieldDiff{
			Field:    "check_out",
			Local:    local.CheckOut,
			External: external.CheckOut,
		})
	}
	if math.Abs(local.TotalAmount-external.TotalAmount) > amountEpsilon {
		diffs = append(diffs, models.FieldDiff{
			Field:    "total_amount",
			Local:    formatAmount(local.TotalAmount),
			External: formatAmount(external.TotalAmount),
		})
	}
	if local.Adults != external.Adults {
		diffs = append(diffs, models.FieldDiff{
			Field:    "adults",
			Local:    fmt.Sprintf("%d", local.Adults),
			External: fmt.Sprintf("%d", external.Adults),
		})
	}
	if local.Children != external.Children {
		diffs = append(diffs, models.FieldDiff{
			Field:    "children",
			Local:    fmt.Sprintf("%d", local.Children),
			External: fmt.Sprintf("%d", external.Children),
		})
	}

	return diffs
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// encodeDiffs serializes a diff list for storage on the mapping row.
func encodeDiffs(diffs []models.FieldDiff) (string, error) {
	raw, err := json.Marshal(diffs)
	if err != nil {
		return "", fmt.Errorf("encode field diffs: %w", err)
	}
	return string(raw), nil
}
