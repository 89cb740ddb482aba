// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pollsource provides the poll data sources the history
// aggregator consumes.
//
// A [Source] has three faces: FetchNextBatch pages through history one
// batch at a time, Updates streams revisions of polls already seen, and
// LivePolls streams polls started after the source was opened. All
// three return poll.Record snapshots; the aggregator never sees Matrix
// events.
//
// Implementations:
//
//   - [MatrixSource] pages backwards through /rooms/{roomId}/messages
//     filtered to poll event types and folds the events through a
//     poll.Assembler. A /sync [messaging.RoomStream] feeds the two
//     streams. History is bounded by a time window.
//   - [FileSource] reads a JSONL file of Matrix events (one event per
//     line, oldest first), pages it newest first, and watches the file
//     with inotify so appended events become live polls or updates.
//   - [Scripted] replays a fixed sequence of steps. Tests use it to
//     model slow, failing, and multi-page sources; demo mode uses it
//     with [MockPolls] as the fallback batch.
//
// Both event-backed sources return every poll a page touched,
// regardless of the requested segment: the aggregator filters by
// segment at display time, and a page that starts an active poll may
// equally start a past one.
package pollsource
