// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pollhistory merges paginated poll history with live poll
// streams into one segment-filtered, ordered view state.
//
// The package is split the way a bubbletea program is: [Aggregator] is
// a pure state machine whose Update method takes one [Event] and
// returns the [Command] values the caller must execute (fetch a page,
// arm or disarm a continuation timer, emit a completion). It performs
// no I/O and never blocks, so tests drive it synchronously.
//
// [Runner] owns an Aggregator on a single goroutine. Host actions
// ([ViewAppeared], [SegmentChanged], [SelectedItem]), fetch results,
// timer expiries, and records from the source's update and live
// streams are all posted to one channel and applied one at a time, so
// no two mutations interleave. Closing the Runner (or cancelling its
// context) cancels in-flight fetches, stops pending timers, and
// unsubscribes from both streams; nothing is applied afterwards.
//
// Per-segment pagination state is explicit ([PageState]): each segment
// keeps its own cursor, HasMore flag, and chain length, so a request
// for one segment never advances the other. Pages chain automatically:
// when a batch reports more history, a continuation is scheduled after
// Options.PageDelay, and the segment counts as loading until the chain
// ends. A fetch failure ends the cycle, keeps every record already
// merged, and emits exactly one [CompletionGenericError].
package pollhistory
