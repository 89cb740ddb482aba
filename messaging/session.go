// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/bureau-foundation/pollhistory/lib/ref"
)

// Session is the read-only Matrix surface the poll source uses.
// *DirectSession is the production implementation.
type Session interface {
	// UserID returns the fully-qualified user ID of the session.
	UserID() ref.UserID

	// Close releases resources held by the session. Idempotent.
	Close() error

	// WhoAmI validates the session and returns the user ID.
	WhoAmI(ctx context.Context) (ref.UserID, error)

	// ResolveAlias resolves a room alias to a room ID.
	ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error)

	// RoomMessages fetches one page of a room's timeline.
	RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error)

	// Sync performs one /sync request.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)
}

var _ Session = (*DirectSession)(nil)
