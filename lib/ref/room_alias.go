// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// RoomAlias is a validated Matrix room alias (e.g., "#polls:example.org").
type RoomAlias struct {
	alias     string
	localpart string
	server    string
}

// ParseRoomAlias validates and wraps a raw room alias string.
func ParseRoomAlias(raw string) (RoomAlias, error) {
	localpart, server, err := parsePrefixedID(raw, '#', "room alias")
	if err != nil {
		return RoomAlias{}, err
	}
	return RoomAlias{alias: raw, localpart: localpart, server: server}, nil
}

// String returns the full alias string.
func (a RoomAlias) String() string { return a.alias }

// Localpart returns the alias without the '#' sigil and server suffix.
func (a RoomAlias) Localpart() string { return a.localpart }

// Server returns the server name portion of the alias.
func (a RoomAlias) Server() string { return a.server }

// IsZero reports whether the RoomAlias is unset.
func (a RoomAlias) IsZero() bool { return a.alias == "" }
