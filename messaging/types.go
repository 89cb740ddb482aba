// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"time"

	"github.com/bureau-foundation/pollhistory/lib/ref"
)

// Event is a Matrix event as delivered by /messages and /sync.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         ref.RoomID     `json:"room_id,omitempty"`
	StateKey       *string        `json:"state_key,omitempty"`
	Unsigned       *EventUnsigned `json:"unsigned,omitempty"`
}

// Timestamp converts OriginServerTS (milliseconds since the epoch) to a
// time.Time.
func (e Event) Timestamp() time.Time {
	return time.UnixMilli(e.OriginServerTS)
}

// EventUnsigned holds optional unsigned data attached to events.
type EventUnsigned struct {
	Age           int64  `json:"age,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// ResolveAliasResponse is returned by ResolveAlias.
type ResolveAliasResponse struct {
	RoomID  ref.RoomID `json:"room_id"`
	Servers []string   `json:"servers"`
}

// RoomMessagesOptions controls pagination for room message fetching.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means "from the newest event"
	Direction string // "b" (backward/older, the default) or "f" (forward/newer)
	Limit     int    // max events to return; 0 uses the server default
	Filter    string // inline JSON RoomEventFilter; empty means no filter
}

// RoomMessagesResponse is returned by RoomMessages. An empty End token
// means there are no more events in the requested direction.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end,omitempty"`
	Chunk []Event `json:"chunk"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch token from the previous sync; empty for the initial sync
	Timeout    int    // long-poll timeout in milliseconds
	SetTimeout bool   // send the timeout parameter (distinguishes unset from 0)
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the subset of the /sync response the viewer reads.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection contains per-room sync data. Map keys decode through
// ref.RoomID's TextUnmarshaler, so room IDs are validated on arrival.
type RoomsSection struct {
	Join map[ref.RoomID]JoinedRoom `json:"join,omitempty"`
}

// JoinedRoom contains sync data for a joined room.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}
