// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// PageState is the pagination state of one segment.
type PageState struct {
	// Started is set once the first page has been requested and
	// cleared again if that first request fails.
	Started bool

	// Fetched is set once any page of the segment has loaded. A
	// failure after that resumes instead of starting over.
	Fetched bool

	// InFlight is set while a fetch is outstanding.
	InFlight bool

	// Pending is set while a continuation timer is armed.
	Pending bool

	// HasMore reports that older pages remain at Cursor.
	HasMore bool
	Cursor  string

	// Chained counts pages fetched since the chain was last started
	// by the host.
	Chained int

	// Generation identifies the outstanding fetch or continuation.
	// Results carrying any other generation are stale.
	Generation uint64
}

// Outstanding reports whether a fetch or continuation is outstanding.
func (p PageState) Outstanding() bool {
	return p.InFlight || p.Pending
}

// Snapshot is the read-only view state handed to the host.
type Snapshot struct {
	// DisplayList is nil until data first arrives (a batch, a live
	// poll, or a failure). After that it is non-nil, possibly empty.
	DisplayList []poll.Record

	IsLoading bool
	Segment   poll.Segment

	// HasMore reports that older history remains for Segment.
	HasMore bool

	// Requested reports that history for Segment has been requested
	// and its first page did not fail.
	Requested bool

	// Revision increases with every state change.
	Revision uint64
}
