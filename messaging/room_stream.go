// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/pollhistory/lib/ref"
)

// SyncFilter configures what timeline events a RoomStream receives.
// The streamed room is always included automatically.
type SyncFilter struct {
	// TimelineTypes restricts timeline events to these Matrix event
	// types. An empty slice means all timeline types.
	TimelineTypes []string `json:"timeline_types,omitempty"`

	// TimelineLimit caps the number of timeline events per /sync
	// response. Zero means the server default.
	TimelineLimit int `json:"timeline_limit,omitempty"`
}

// BuildRoomEventFilter returns the inline RoomEventFilter JSON for
// /rooms/{roomId}/messages restricted to types.
func BuildRoomEventFilter(types []string) string {
	data, _ := json.Marshal(map[string]any{"types": types})
	return string(data)
}

// buildInlineFilter constructs the inline /sync filter scoped to one
// room, with state, presence, and account data suppressed.
func buildInlineFilter(roomID ref.RoomID, filter *SyncFilter) string {
	roomFilter := map[string]any{
		"rooms": []string{roomID.String()},
		"state": map[string]any{"types": []string{}},
	}
	if filter != nil {
		timeline := map[string]any{}
		if len(filter.TimelineTypes) > 0 {
			timeline["types"] = filter.TimelineTypes
		}
		if filter.TimelineLimit > 0 {
			timeline["limit"] = filter.TimelineLimit
		}
		if len(timeline) > 0 {
			roomFilter["timeline"] = timeline
		}
	}

	top := map[string]any{
		"room":         roomFilter,
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	data, _ := json.Marshal(top)
	return string(data)
}

// maxSyncRetries is the number of consecutive /sync failures allowed
// before Next returns an error. Each retry uses a short server-side
// timeout so the HTTP round-trip itself provides backoff.
const maxSyncRetries = 5

// longPollTimeout is the server-side long-poll hold in milliseconds.
const longPollTimeout = 30000

// retryTimeout is the server-side hold in milliseconds after a /sync
// error.
const retryTimeout = 1000

// RoomStream captures a position in the /sync stream for one room and
// yields the timeline events that arrive after it. Open one with
// OpenRoomStream before paging history so events landing between the
// two are seen by both rather than neither.
//
// RoomStream is not safe for concurrent use. Independent streams on
// the same Session are fine: the since token travels as a query
// parameter, not server-side state.
type RoomStream struct {
	session   Session
	roomID    ref.RoomID
	filter    string
	nextBatch string
	logger    *slog.Logger
}

// OpenRoomStream performs an immediate /sync (timeout 0) to anchor the
// stream at the current position. Events already in the room are not
// returned by Next.
func OpenRoomStream(ctx context.Context, session Session, roomID ref.RoomID, filter *SyncFilter, logger *slog.Logger) (*RoomStream, error) {
	if roomID.IsZero() {
		return nil, fmt.Errorf("messaging: OpenRoomStream requires a non-zero room ID")
	}
	if logger == nil {
		logger = slog.Default()
	}
	inlineFilter := buildInlineFilter(roomID, filter)
	response, err := session.Sync(ctx, SyncOptions{
		SetTimeout: true,
		Timeout:    0,
		Filter:     inlineFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: initial sync for room stream: %w", err)
	}
	return &RoomStream{
		session:   session,
		roomID:    roomID,
		filter:    inlineFilter,
		nextBatch: response.NextBatch,
		logger:    logger,
	}, nil
}

// Next long-polls /sync until at least one timeline event for the room
// arrives, and returns the events in delivery order. Transient /sync
// failures are retried up to maxSyncRetries consecutive times, dropping
// idle connections between attempts.
func (s *RoomStream) Next(ctx context.Context) ([]Event, error) {
	var syncRetries int
	for {
		syncTimeout := longPollTimeout
		if syncRetries > 0 {
			syncTimeout = retryTimeout
		}
		response, err := s.session.Sync(ctx, SyncOptions{
			Since:      s.nextBatch,
			SetTimeout: true,
			Timeout:    syncTimeout,
			Filter:     s.filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("room stream for %s: %w", s.roomID, ctx.Err())
			}
			syncRetries++
			if closer, ok := s.session.(interface{ CloseIdleConnections() }); ok {
				closer.CloseIdleConnections()
			}
			if syncRetries > maxSyncRetries {
				return nil, fmt.Errorf("sync failed %d consecutive times streaming room %s: %w",
					syncRetries, s.roomID, err)
			}
			s.logger.Debug("room stream sync error, retrying",
				"room_id", s.roomID,
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"error", err,
			)
			continue
		}
		syncRetries = 0
		s.nextBatch = response.NextBatch

		joined, ok := response.Rooms.Join[s.roomID]
		if !ok || len(joined.Timeline.Events) == 0 {
			continue
		}
		if joined.Timeline.Limited {
			s.logger.Warn("room stream timeline was limited, some poll events may be missing",
				"room_id", s.roomID,
			)
		}
		return joined.Timeline.Events, nil
	}
}

// SyncPosition returns the current sync stream position token.
func (s *RoomStream) SyncPosition() string {
	return s.nextBatch
}

// RoomID returns the room being streamed.
func (s *RoomStream) RoomID() ref.RoomID {
	return s.roomID
}
