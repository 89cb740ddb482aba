// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"context"

	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// Source supplies paginated poll history plus streams of revisions and
// newly started polls.
type Source interface {
	// FetchNextBatch returns the page after cursor for segment. An
	// empty cursor requests the newest page. The returned Batch.Cursor
	// is passed back verbatim to fetch the following page.
	FetchNextBatch(ctx context.Context, segment poll.Segment, cursor string) (Batch, error)

	// Updates streams revisions of polls. The channel is closed when
	// ctx is done.
	Updates(ctx context.Context) (<-chan poll.Record, error)

	// LivePolls streams polls started after the source was opened. The
	// channel is closed when ctx is done.
	LivePolls(ctx context.Context) (<-chan poll.Record, error)
}

// Batch is one page of poll history.
type Batch struct {
	Records []poll.Record

	// HasMore reports whether older history remains.
	HasMore bool

	// Cursor is the opaque position of the next page. Meaningful only
	// when HasMore is set.
	Cursor string
}
