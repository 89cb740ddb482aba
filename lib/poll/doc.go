// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package poll defines the poll snapshot shared by every layer of the
// poll history viewer, and assembles those snapshots from Matrix poll
// events.
//
// A [Record] is an immutable-by-convention snapshot of one poll. Its ID
// is the event ID of the poll's start event and never changes; every
// other field may be revised by later events (responses, an end event,
// an edit). [Segment] splits records into active (not closed) and past
// (closed). [DisplayList] derives the ordered, segment-filtered list
// the UI renders: newest start first, ties broken by ascending ID.
//
// [Assembler] folds a stream of Matrix events (stable m.poll.* and the
// unstable org.matrix.msc3381.* prefixes) into Records, applying the
// vote-counting rules of MSC3381: each sender's latest response before
// the poll ended counts, selections are truncated to max_selections,
// unknown answer IDs are ignored, and an empty selection withdraws the
// vote. Only the poll creator can end a poll.
package poll
