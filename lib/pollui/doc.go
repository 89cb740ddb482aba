// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pollui presents poll history in a terminal.
//
// [Adapter] is the presentation boundary: it turns each
// [pollhistory.Snapshot] into a [View] of formatted rows (date, vote
// summary, per-answer counts and shares, winner and own-vote markers)
// with a segment title, a loading flag, and an empty-state text, and
// it translates user intents (screen shown, segment switched, row
// selected) into pollhistory actions. Results of undisclosed polls are
// withheld until the poll ends.
//
// [Model] is a bubbletea program built on the adapter: one tab per
// segment, j/k list navigation, a detail view with result bars, a
// fuzzy question filter using fzf's matcher, and a status bar fed by
// [LogHandler] so warnings logged while the TUI owns the terminal
// remain visible. Poll text in the detail view is rendered as inline
// markdown with goldmark; list rows show it verbatim.
//
// [RenderPlain] and [Settle] serve non-interactive output: wait for
// the first load cycle to finish, print the list once, exit.
package pollui
