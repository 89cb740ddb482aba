// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"slices"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/ref"
	"github.com/bureau-foundation/pollhistory/messaging"
)

// maxOrphans bounds the number of related events buffered for polls
// whose start event has not been seen. Backwards pagination delivers
// responses before the start they reference; events past the bound are
// dropped.
const maxOrphans = 10000

// Change describes what an event did to the assembler's polls.
type Change int

const (
	// ChangeNone means no known poll changed: the event was a
	// duplicate, irrelevant, or buffered as an orphan.
	ChangeNone Change = iota
	// ChangeStarted means a poll start event was seen for the first
	// time.
	ChangeStarted
	// ChangeRevised means an already-known poll was revised.
	ChangeRevised
)

type response struct {
	eventID    string
	timestamp  time.Time
	selections []string
}

// after orders responses by timestamp, then event ID.
func (r response) after(other response) bool {
	if !r.timestamp.Equal(other.timestamp) {
		return r.timestamp.After(other.timestamp)
	}
	return r.eventID > other.eventID
}

type pollState struct {
	id        string
	creator   string
	startedAt time.Time

	definition Definition
	edited     bool
	editAt     time.Time
	editID     string

	// responses holds every response per sender. Which one counts
	// depends on whether and when the poll ended.
	responses map[string][]response

	ended bool
	endAt time.Time

	decryptionError bool
}

// Assembler folds Matrix poll events into Records. It is not safe for
// concurrent use.
type Assembler struct {
	viewer      string
	polls       map[string]*pollState
	orphans     map[string][]ParsedEvent
	orphanCount int
	seen        map[string]struct{}
}

// NewAssembler creates an empty assembler. viewer is the local user;
// Answer.Selected reflects their counted vote.
func NewAssembler(viewer ref.UserID) *Assembler {
	return &Assembler{
		viewer:  viewer.String(),
		polls:   make(map[string]*pollState),
		orphans: make(map[string][]ParsedEvent),
		seen:    make(map[string]struct{}),
	}
}

// Add applies one Matrix event. It returns the ID of the affected poll
// and what happened to it. Events seen before (by event ID) are
// ignored. Malformed poll events return an error wrapping ErrMalformed
// and leave the assembler unchanged apart from remembering the event
// ID.
func (a *Assembler) Add(event messaging.Event) (string, Change, error) {
	eventID := event.EventID.String()
	if eventID != "" {
		if _, duplicate := a.seen[eventID]; duplicate {
			return "", ChangeNone, nil
		}
		a.seen[eventID] = struct{}{}
	}

	parsed, err := ParseEvent(event)
	if err != nil {
		return "", ChangeNone, err
	}
	return a.apply(parsed)
}

func (a *Assembler) apply(parsed ParsedEvent) (string, Change, error) {
	switch parsed.Action {
	case ActionIgnore:
		return "", ChangeNone, nil
	case ActionStart:
		if _, exists := a.polls[parsed.PollID]; exists {
			return "", ChangeNone, nil
		}
		state := &pollState{
			id:         parsed.PollID,
			creator:    parsed.Sender,
			startedAt:  parsed.Timestamp,
			definition: *parsed.Definition,
			responses:  make(map[string][]response),
		}
		a.polls[parsed.PollID] = state
		for _, orphan := range a.orphans[parsed.PollID] {
			a.applyRelated(state, orphan)
		}
		a.orphanCount -= len(a.orphans[parsed.PollID])
		delete(a.orphans, parsed.PollID)
		return parsed.PollID, ChangeStarted, nil
	}

	state, known := a.polls[parsed.PollID]
	if !known {
		if a.orphanCount < maxOrphans {
			a.orphans[parsed.PollID] = append(a.orphans[parsed.PollID], parsed)
			a.orphanCount++
		}
		return "", ChangeNone, nil
	}
	if !a.applyRelated(state, parsed) {
		return "", ChangeNone, nil
	}
	return state.id, ChangeRevised, nil
}

// applyRelated folds a response, end, edit, or encrypted event into a
// known poll and reports whether anything changed.
func (a *Assembler) applyRelated(state *pollState, parsed ParsedEvent) bool {
	switch parsed.Action {
	case ActionResponse:
		state.responses[parsed.Sender] = append(state.responses[parsed.Sender], response{
			eventID:    parsed.EventID,
			timestamp:  parsed.Timestamp,
			selections: parsed.Selections,
		})
		return true

	case ActionEnd:
		if parsed.Sender != state.creator {
			return false
		}
		if state.ended && !parsed.Timestamp.Before(state.endAt) {
			return false
		}
		state.ended = true
		state.endAt = parsed.Timestamp
		return true

	case ActionEdit:
		if parsed.Sender != state.creator {
			return false
		}
		if state.edited {
			latest := response{eventID: state.editID, timestamp: state.editAt}
			candidate := response{eventID: parsed.EventID, timestamp: parsed.Timestamp}
			if !candidate.after(latest) {
				return false
			}
		}
		state.definition = *parsed.Definition
		state.edited = true
		state.editAt = parsed.Timestamp
		state.editID = parsed.EventID
		return true

	case ActionEncrypted:
		if state.decryptionError {
			return false
		}
		state.decryptionError = true
		return true
	}
	return false
}

// Known reports whether the start event of poll id has been seen.
func (a *Assembler) Known(id string) bool {
	_, ok := a.polls[id]
	return ok
}

// Len returns the number of known polls.
func (a *Assembler) Len() int {
	return len(a.polls)
}

// OrphanCount returns the number of buffered events whose poll is not
// yet known.
func (a *Assembler) OrphanCount() int {
	return a.orphanCount
}

// Record computes the current snapshot of poll id.
func (a *Assembler) Record(id string) (Record, bool) {
	state, ok := a.polls[id]
	if !ok {
		return Record{}, false
	}
	return a.build(state), true
}

func (a *Assembler) build(state *pollState) Record {
	definition := state.definition
	record := Record{
		ID:              state.id,
		Question:        definition.Question,
		Answers:         make([]Answer, len(definition.Answers)),
		Closed:          state.ended,
		StartedAt:       state.startedAt,
		Kind:            definition.Kind,
		EventType:       EventStarted,
		MaxSelections:   definition.MaxSelections,
		Edited:          state.edited,
		DecryptionError: state.decryptionError,
	}
	if state.ended {
		record.EventType = EventEnded
	}

	index := make(map[string]int, len(definition.Answers))
	for i, answer := range definition.Answers {
		record.Answers[i] = Answer{ID: answer.ID, Text: answer.Text}
		index[answer.ID] = i
	}

	for sender, responses := range state.responses {
		selections := a.countedSelections(state, responses, index)
		if len(selections) == 0 {
			continue
		}
		record.TotalAnswerCount++
		for _, answerID := range selections {
			position := index[answerID]
			record.Answers[position].Count++
			if sender == a.viewer {
				record.Answers[position].Selected = true
			}
		}
	}

	if state.ended {
		highest := 0
		for _, answer := range record.Answers {
			highest = max(highest, answer.Count)
		}
		if highest > 0 {
			for i := range record.Answers {
				record.Answers[i].Winner = record.Answers[i].Count == highest
			}
		}
	}
	return record
}

// countedSelections picks the sender's latest response that is not
// after the end, drops unknown and repeated answer IDs, and truncates
// to MaxSelections.
func (a *Assembler) countedSelections(state *pollState, responses []response, index map[string]int) []string {
	var latest *response
	for i := range responses {
		candidate := &responses[i]
		if state.ended && candidate.timestamp.After(state.endAt) {
			continue
		}
		if latest == nil || candidate.after(*latest) {
			latest = candidate
		}
	}
	if latest == nil {
		return nil
	}

	counted := make([]string, 0, state.definition.MaxSelections)
	for _, answerID := range latest.selections {
		if len(counted) == state.definition.MaxSelections {
			break
		}
		if _, valid := index[answerID]; !valid || slices.Contains(counted, answerID) {
			continue
		}
		counted = append(counted, answerID)
	}
	return counted
}
