// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// bookingIDFields lists the keys an external booking object may carry its id
// under, in precedence order.
var bookingIDFields = []string{"id", "bookId", "booking_id", "bookingId"}

// shapeMatcher attempts to extract the created booking's external id from
// one known response shape. It returns ok=false when the shape does not
// apply; an error only when the shape applies but is unusable.
type shapeMatcher struct {
	name    string
	extract func(raw []byte) (id string, ok bool, err error)
}

// bookingShapes is the ordered list of response shapes seen in the wild for
// "booking created". Order matters: wrappers are checked before the bare
// object so `{"data":[...]}` is never mistaken for a booking whose id field
// happens to be missing.
var bookingShapes = []shapeMatcher{
	{name: "bare array", extract: matchBareArray},
	{name: "data wrapper", extract: matchObjectArrayField("data")},
	{name: "new wrapper", extract: matchObjectField("new")},
	{name: "info wrapper", extract: matchObjectArrayField("info")},
	{name: "bare object", extract: matchBareObject},
}

// ExtractBookingID pulls the external booking id out of a create/update
// response, tolerating the shapes listed in bookingShapes. Shapes are tried
// in order; the first applicable one wins. A response matching no shape, or
// an applicable shape with no usable id, fails with a ShapeError. The
// caller must never guess an id.
func ExtractBookingID(system string, raw []byte) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", &ShapeError{System: system, Reason: "empty response", Raw: trimmed}
	}

	for _, shape := range bookingShapes {
		id, ok, err := shape.extract(raw)
		if err != nil {
			return "", &ShapeError{
				System: system,
				Reason: fmt.Sprintf("%s: %v", shape.name, err),
				Raw:    trimmed,
			}
		}
		if ok {
			return id, nil
		}
	}
	return "", &ShapeError{System: system, Reason: "no known shape matched", Raw: trimmed}
}

// matchBareArray handles `[{...}]`: a single-element array of booking
// objects. Multi-element arrays are ambiguous for a single create.
func matchBareArray(raw []byte) (string, bool, error) {
	var arr []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return "", false, nil
	}
	switch len(arr) {
	case 0:
		return "", false, fmt.Errorf("empty array")
	case 1:
		id, err := idFromObject(arr[0])
		return id, err == nil, err
	default:
		return "", false, fmt.Errorf("ambiguous: %d elements for one booking", len(arr))
	}
}

// matchObjectArrayField handles `{"<field>":[{...}]}`.
func matchObjectArrayField(field string) func([]byte) (string, bool, error) {
	return func(raw []byte) (string, bool, error) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", false, nil
		}
		inner, present := obj[field]
		if !present {
			return "", false, nil
		}
		id, ok, err := matchBareArray(inner)
		if err != nil {
			return "", false, err
		}
		if !ok {
			return "", false, fmt.Errorf("%q is not a usable booking array", field)
		}
		return id, true, nil
	}
}

// matchObjectField handles `{"<field>":{...}}`.
func matchObjectField(field string) func([]byte) (string, bool, error) {
	return func(raw []byte) (string, bool, error) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", false, nil
		}
		inner, present := obj[field]
		if !present {
			return "", false, nil
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err != nil {
			return "", false, fmt.Errorf("%q is not an object", field)
		}
		id, err := idFromObject(nested)
		if err != nil {
			return "", false, err
		}
		return id, true, nil
	}
}

// matchBareObject handles `{...}` with a top-level id field. Runs last so
// wrapper shapes take precedence.
func matchBareObject(raw []byte) (string, bool, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false, nil
	}
	id, err := idFromObject(obj)
	if err != nil {
		return "", false, nil
	}
	return id, true, nil
}

// idFromObject reads the booking id from an already-decoded object,
// accepting both string and numeric ids.
func idFromObject(obj map[string]json.RawMessage) (string, error) {
	for _, field := range bookingIDFields {
		raw, present := obj[field]
		if !present {
			continue
		}
		var str string
		if err := json.Unmarshal(raw, &str); err == nil && str != "" {
			return str, nil
		}
		var num int64
		if err := json.Unmarshal(raw, &num); err == nil {
			return fmt.Sprintf("%d", num), nil
		}
	}
	return "", fmt.Errorf("object carries no booking id")
}
