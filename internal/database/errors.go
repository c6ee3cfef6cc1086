// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package database

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyMapped is returned when creating a mapping would violate the
// one-external-id-per-local-id invariant (or its inverse).
var ErrAlreadyMapped = errors.New("entity already mapped")

// ErrRunActive is returned when starting a sync run while another run for
// the same system is still in the running state.
var ErrRunActive = errors.New("a sync run is already active for this system")

// ErrAlreadySynced is returned when persisting an external id onto a
// reservation that already carries a different one. The caller should treat
// the stored id as authoritative.
var ErrAlreadySynced = errors.New("reservation already has an external id")

// IsConstraintViolation reports whether an error (possibly wrapped) is a
// SQLite UNIQUE or CHECK constraint failure. Callers use it to detect lost
// races on uniqueness guards enforced here rather than in memory.
func IsConstraintViolation(err error) bool {
	return isConstraintViolation(err)
}
