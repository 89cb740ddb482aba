// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable Matrix identifiers: room
// IDs, room aliases, event IDs, user IDs, and event types.
//
// Identifiers arrive from the homeserver or from the command line as
// raw strings and are parsed into these types at the boundary. Past
// the boundary, code passes the typed values and never re-validates.
// The zero value of each struct type is "unset"; use IsZero to check.
//
// JSON marshaling uses the canonical Matrix string form via
// encoding.TextMarshaler, so the types can appear directly in wire
// structs.
package ref
