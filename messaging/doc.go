// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the parts of the Matrix client-server API the
// poll history viewer reads from.
//
// [Client] is an unauthenticated client holding the homeserver URL and
// HTTP transport. It produces authenticated [DirectSession] values via
// password [Client.Login] or an existing access token
// ([Client.SessionFromToken]). The access token lives in a
// lib/secret Buffer; callers must Close the session.
//
// [Session] is the read surface the poll source depends on: identity
// (WhoAmI), alias resolution, backwards timeline pagination through
// /rooms/{roomId}/messages, and /sync long-polling. Tests substitute
// an httptest homeserver behind a real DirectSession.
//
// [RoomStream] anchors a position in the /sync stream for one room and
// returns each subsequent non-empty batch of timeline events. It is the
// transport under the poll source's live and update streams.
//
// API failures are returned as [*MatrixError] carrying the Matrix error
// code and HTTP status; [IsMatrixError] tests for a specific code.
// Request URLs are built by string concatenation rather than url.URL to
// avoid double-encoding path segments that are already escaped.
package messaging
