// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package models

import "time"

// SyncType distinguishes the direction of a sync operation.
type SyncType string

const (
	SyncTypePush SyncType = "push"
	SyncTypePull SyncType = "pull"
)

// SyncResult is the structured outcome of a single sync operation. Every
// operation produces exactly one: either a success (optionally carrying the
// external id it created or matched) or a failure with an error message and
// machine-readable code. Callers never receive raw errors from sync services.
type SyncResult struct {
	Success    bool      `json:"success"`
	SyncType   SyncType  `json:"sync_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	SyncedAt   time.Time `json:"synced_at"`
}

// SuccessResult builds a successful SyncResult.
func SuccessResult(syncType SyncType, entityType, entityID, externalID string) SyncResult {
	return SyncResult{
		Success:    true,
		SyncType:   syncType,
		EntityType: entityType,
		EntityID:   entityID,
		ExternalID: externalID,
		SyncedAt:   time.Now().UTC(),
	}
}

// FailureResult builds a failed SyncResult.
func FailureResult(syncType SyncType, entityType, entityID, errMsg, errCode string) SyncResult {
	return SyncResult{
		Success:    false,
		SyncType:   syncType,
		EntityType: entityType,
		EntityID:   entityID,
		Error:      errMsg,
		ErrorCode:  errCode,
		SyncedAt:   time.Now().UTC(),
	}
}

// SyncRunStatus is the lifecycle state of a full-sync run.
// Transitions: idle -> running -> completed | failed. Terminal states are
// overwritten only by the next explicitly triggered run.
type SyncRunStatus string

const (
	SyncRunIdle      SyncRunStatus = "idle"
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunFailed    SyncRunStatus = "failed"
)

// SyncItemError records one failed item within a sync run.
type SyncItemError struct {
	ExternalID string `json:"external_id,omitempty"`
	EntityType string `json:"entity_type"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

// SyncRun is the per-run progress record for a full or phase sync.
// A single writer (the orchestrator) owns it; at most one run per
// (system, run type) may be in the running state.
type SyncRun struct {
	ID      int64         `json:"id"`
	System  string        `json:"system"`
	RunType string        `json:"run_type"` // full, rooms, reservations, reconcile
	Status  SyncRunStatus `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ItemsProcessed int `json:"items_processed"`
	ItemsCreated   int `json:"items_created"`
	ItemsUpdated   int `json:"items_updated"`
	ItemsFailed    int `json:"items_failed"`

	Errors []SyncItemError `json:"errors,omitempty"`
}

// Merge folds phase counters and errors into the aggregate run record.
func (r *SyncRun) Merge(other *SyncRun) {
	r.ItemsProcessed += other.ItemsProcessed
	r.ItemsCreated += other.ItemsCreated
	r.ItemsUpdated += other.ItemsUpdated
	r.ItemsFailed += other.ItemsFailed
	r.Errors = append(r.Errors, other.Errors...)
}
