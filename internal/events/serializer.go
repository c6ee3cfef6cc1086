// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer handles envelope encoding for broker messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an envelope to JSON bytes, validating it first.
func (s *Serializer) Marshal(msg *SyncMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("validate message: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes to an envelope. A payload that decodes but
// fails validation is as unusable as one that does not decode.
func (s *Serializer) Unmarshal(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("validate message: %w", err)
	}
	return &msg, nil
}
