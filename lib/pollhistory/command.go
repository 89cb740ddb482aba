// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"time"

	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// Command is a side effect requested by Aggregator.Update.
type Command interface {
	isCommand()
}

// FetchBatch asks for the page at Cursor. The result must come back as
// BatchLoaded or BatchFailed carrying the same Segment and Generation.
type FetchBatch struct {
	Segment    poll.Segment
	Cursor     string
	Generation uint64
}

// ScheduleContinuation asks for ContinuationDue{Segment, Generation}
// to be delivered after Delay.
type ScheduleContinuation struct {
	Segment    poll.Segment
	Delay      time.Duration
	Generation uint64
}

// CancelContinuation withdraws a previously scheduled continuation.
// Delivering it anyway is harmless: the aggregator drops continuations
// whose generation is no longer pending.
type CancelContinuation struct {
	Segment    poll.Segment
	Generation uint64
}

// EmitCompletion hands a completion to the host.
type EmitCompletion struct {
	Completion Completion
}

func (FetchBatch) isCommand()           {}
func (ScheduleContinuation) isCommand() {}
func (CancelContinuation) isCommand()   {}
func (EmitCompletion) isCommand()       {}
