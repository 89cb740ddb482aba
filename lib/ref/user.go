// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// UserID is a validated Matrix user ID (e.g., "@alice:example.org").
// Poll responses are counted per sender, so UserID is the key for vote
// de-duplication.
type UserID struct {
	id        string
	localpart string
	server    string
}

// ParseUserID validates and wraps a raw Matrix user ID string.
func ParseUserID(raw string) (UserID, error) {
	localpart, server, err := parsePrefixedID(raw, '@', "user ID")
	if err != nil {
		return UserID{}, err
	}
	return UserID{id: raw, localpart: localpart, server: server}, nil
}

// MustParseUserID is like ParseUserID but panics on error.
func MustParseUserID(raw string) UserID {
	userID, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return userID
}

// String returns the full user ID string.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is unset.
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the part between '@' and ':'.
func (u UserID) Localpart() string { return u.localpart }

// Server returns the server name after the ':'.
func (u UserID) Server() string { return u.server }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
