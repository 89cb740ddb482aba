// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"fmt"
	"slices"
	"time"
)

// Kind is the poll's result disclosure mode.
type Kind int

const (
	// KindDisclosed shows running results to voters.
	KindDisclosed Kind = iota
	// KindUndisclosed hides results until the poll ends.
	KindUndisclosed
)

func (k Kind) String() string {
	switch k {
	case KindDisclosed:
		return "disclosed"
	case KindUndisclosed:
		return "undisclosed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// EventType records which event last shaped a Record: the start event
// (or an edit of it) or the end event.
type EventType int

const (
	// EventStarted means the record reflects the poll start event.
	EventStarted EventType = iota
	// EventEnded means the record reflects the poll end event.
	EventEnded
)

func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Answer is one option of a poll.
type Answer struct {
	ID    string
	Text  string
	Count int

	// Winner is set on closed polls for every answer that shares the
	// highest non-zero count.
	Winner bool

	// Selected is set when the viewing user's counted vote includes
	// this answer.
	Selected bool
}

// Record is a snapshot of one poll at a point in time. Treat values as
// immutable: producers build a new Record for every revision, and
// consumers that need to modify one should call Clone first.
type Record struct {
	// ID is the event ID of the poll start event. Stable across every
	// revision of the poll.
	ID string

	Question string

	// Answers is ordered as the poll creator listed them.
	Answers []Answer

	Closed    bool
	StartedAt time.Time

	// TotalAnswerCount is the number of senders whose latest response
	// is a valid, non-empty selection.
	TotalAnswerCount int

	Kind      Kind
	EventType EventType

	// MaxSelections is at least 1.
	MaxSelections int

	// Edited is set once an m.replace edit of the start event has been
	// applied.
	Edited bool

	// DecryptionError is set when an encrypted event related to this
	// poll could not be decrypted, so counts may be incomplete.
	DecryptionError bool
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Answers = slices.Clone(r.Answers)
	return r
}

// Equal reports structural equality of two records, including every
// answer. The presentation layer uses it to skip redundant redraws.
func (r Record) Equal(other Record) bool {
	return r.ID == other.ID &&
		r.Question == other.Question &&
		r.Closed == other.Closed &&
		r.StartedAt.Equal(other.StartedAt) &&
		r.TotalAnswerCount == other.TotalAnswerCount &&
		r.Kind == other.Kind &&
		r.EventType == other.EventType &&
		r.MaxSelections == other.MaxSelections &&
		r.Edited == other.Edited &&
		r.DecryptionError == other.DecryptionError &&
		slices.Equal(r.Answers, other.Answers)
}

// Segment selects which records are visible.
type Segment int

const (
	// SegmentActive shows polls that are not closed.
	SegmentActive Segment = iota
	// SegmentPast shows closed polls.
	SegmentPast
)

// Segments lists every segment in display order.
var Segments = [...]Segment{SegmentActive, SegmentPast}

// Includes reports whether record belongs to this segment.
func (s Segment) Includes(record Record) bool {
	if s == SegmentPast {
		return record.Closed
	}
	return !record.Closed
}

func (s Segment) String() string {
	switch s {
	case SegmentActive:
		return "active"
	case SegmentPast:
		return "past"
	default:
		return fmt.Sprintf("Segment(%d)", int(s))
	}
}

// ParseSegment parses "active" or "past".
func ParseSegment(raw string) (Segment, error) {
	switch raw {
	case "active":
		return SegmentActive, nil
	case "past":
		return SegmentPast, nil
	default:
		return 0, fmt.Errorf("unknown poll segment %q (want active or past)", raw)
	}
}
