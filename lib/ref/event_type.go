// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix timeline or state event type. It is a
// named string rather than a struct: event types need no validation,
// the type exists to keep event types and state keys apart at compile
// time.
type EventType string

// String returns the event type string (e.g., "m.poll.start").
func (t EventType) String() string { return string(t) }
