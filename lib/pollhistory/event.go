// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollsource"
)

// Event is anything the aggregator reacts to. The set is closed: host
// actions plus the internal events the Runner posts.
type Event interface {
	isEvent()
}

// Action is an Event that originates from the host screen.
type Action interface {
	Event
	isAction()
}

// ViewAppeared is sent when the history screen becomes visible.
type ViewAppeared struct{}

// SegmentChanged is sent when the user switches between active and
// past polls.
type SegmentChanged struct {
	Segment poll.Segment
}

// SelectedItem is sent when the user picks a poll from the list.
type SelectedItem struct {
	ID string
}

// BatchLoaded carries a successful fetch result.
type BatchLoaded struct {
	Segment    poll.Segment
	Batch      pollsource.Batch
	Generation uint64
}

// BatchFailed carries a failed fetch result.
type BatchFailed struct {
	Segment    poll.Segment
	Err        error
	Generation uint64
}

// PollUpdated carries a revision from the source's update stream.
type PollUpdated struct {
	Record poll.Record
}

// LivePollArrived carries a poll from the source's live stream.
type LivePollArrived struct {
	Record poll.Record
}

// ContinuationDue fires when a scheduled next-page timer expires.
type ContinuationDue struct {
	Segment    poll.Segment
	Generation uint64
}

func (ViewAppeared) isEvent()    {}
func (SegmentChanged) isEvent()  {}
func (SelectedItem) isEvent()    {}
func (BatchLoaded) isEvent()     {}
func (BatchFailed) isEvent()     {}
func (PollUpdated) isEvent()     {}
func (LivePollArrived) isEvent() {}
func (ContinuationDue) isEvent() {}

func (ViewAppeared) isAction()   {}
func (SegmentChanged) isAction() {}
func (SelectedItem) isAction()   {}
