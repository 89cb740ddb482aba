// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollhistory"
)

// Dispatcher accepts host actions. *pollhistory.Runner implements it.
type Dispatcher interface {
	Dispatch(action pollhistory.Action) bool
}

// AnswerRow is one answer as displayed.
type AnswerRow struct {
	Text string

	// Count and Percent are zero while results are hidden.
	Count   int
	Percent int

	Winner   bool
	Selected bool
}

// Row is one poll as displayed.
type Row struct {
	ID       string
	Question string

	// Date is the poll's start date in the viewer's local time.
	Date string

	// Summary is a one-line description of the vote state, e.g.
	// "Final result based on 3 votes".
	Summary string

	Answers []AnswerRow
	Closed  bool

	// ResultsHidden is set for undisclosed polls that have not ended.
	ResultsHidden bool

	Edited          bool
	DecryptionError bool
}

// View is everything a renderer needs for one frame.
type View struct {
	Segment poll.Segment

	// Title names the segment: "Active polls" or "Past polls".
	Title string

	Rows    []Row
	Loading bool
	HasMore bool

	// EmptyText is set when Rows is empty: either a loading notice or
	// an explanation that the segment has no polls.
	EmptyText string

	// Error is set after a fetch failure until the next load cycle.
	Error string
}

// Empty-state and error texts.
const (
	textLoading       = "Loading polls"
	textNoActive      = "There are no active polls in this room"
	textNoPast        = "There are no past polls in this room"
	textLoadMore      = "Load more polls to view polls for previous months"
	textFetchFailed   = "Poll history could not be loaded"
	textHiddenResults = "Results will be visible when the poll is ended"
)

// SegmentTitle returns the heading for segment.
func SegmentTitle(segment poll.Segment) string {
	if segment == poll.SegmentPast {
		return "Past polls"
	}
	return "Active polls"
}

// Adapter turns aggregator snapshots into display rows and translates
// user intents into aggregator actions. It holds no poll state of its
// own beyond the last view, which it keeps to report whether a new
// snapshot changes anything visible.
type Adapter struct {
	dispatcher Dispatcher
	location   *time.Location

	view     View
	records  []poll.Record
	loaded   bool
	errorMsg string
}

// NewAdapter creates an adapter that sends actions to dispatcher.
// Dates are rendered in location; nil means time.Local.
func NewAdapter(dispatcher Dispatcher, location *time.Location) *Adapter {
	if location == nil {
		location = time.Local
	}
	return &Adapter{
		dispatcher: dispatcher,
		location:   location,
		view: View{
			Title:     SegmentTitle(poll.SegmentActive),
			EmptyText: textLoading,
		},
	}
}

// View returns the most recently built view.
func (a *Adapter) View() View {
	return a.view
}

// Apply rebuilds the view from snapshot. The second result reports
// whether anything visible changed; identical records (by
// poll.Record.Equal) do not count as a change.
func (a *Adapter) Apply(snapshot pollhistory.Snapshot) (View, bool) {
	changed := !a.loaded && snapshot.DisplayList != nil ||
		snapshot.Segment != a.view.Segment ||
		snapshot.IsLoading != a.view.Loading ||
		snapshot.HasMore != a.view.HasMore ||
		!recordsEqual(a.records, snapshot.DisplayList)

	// A new load cycle clears the previous failure.
	if snapshot.IsLoading && !a.view.Loading && a.errorMsg != "" {
		a.errorMsg = ""
		changed = true
	}
	if !changed {
		return a.view, false
	}

	a.records = snapshot.DisplayList
	a.loaded = a.loaded || snapshot.DisplayList != nil
	a.view = a.build(snapshot)
	return a.view, true
}

// Fail records a fetch failure for display. Call it with the Err of a
// CompletionGenericError.
func (a *Adapter) Fail(err error) View {
	a.errorMsg = textFetchFailed
	if err != nil && !errors.Is(err, pollhistory.ErrFetchFailed) {
		a.errorMsg = fmt.Sprintf("%s: %v", textFetchFailed, err)
	}
	a.view.Error = a.errorMsg
	return a.view
}

// Appeared reports that the list became visible, or that the user
// asked for more history.
func (a *Adapter) Appeared() bool {
	return a.dispatcher.Dispatch(pollhistory.ViewAppeared{})
}

// ChangeSegment switches the visible segment.
func (a *Adapter) ChangeSegment(segment poll.Segment) bool {
	return a.dispatcher.Dispatch(pollhistory.SegmentChanged{Segment: segment})
}

// Select forwards the selection of the row at index. It returns false
// if index is out of range or the runner has stopped.
func (a *Adapter) Select(index int) bool {
	if index < 0 || index >= len(a.view.Rows) {
		return false
	}
	return a.SelectID(a.view.Rows[index].ID)
}

// SelectID forwards the selection of the poll with the given ID.
func (a *Adapter) SelectID(id string) bool {
	return a.dispatcher.Dispatch(pollhistory.SelectedItem{ID: id})
}

func (a *Adapter) build(snapshot pollhistory.Snapshot) View {
	view := View{
		Segment: snapshot.Segment,
		Title:   SegmentTitle(snapshot.Segment),
		Loading: snapshot.IsLoading,
		HasMore: snapshot.HasMore,
		Error:   a.errorMsg,
		Rows:    make([]Row, 0, len(snapshot.DisplayList)),
	}
	for _, record := range snapshot.DisplayList {
		view.Rows = append(view.Rows, NewRow(record, a.location))
	}
	if len(view.Rows) == 0 {
		view.EmptyText = emptyText(snapshot)
	}
	return view
}

func emptyText(snapshot pollhistory.Snapshot) string {
	if snapshot.DisplayList == nil || snapshot.IsLoading {
		return textLoading
	}
	text := textNoActive
	if snapshot.Segment == poll.SegmentPast {
		text = textNoPast
	}
	if snapshot.HasMore {
		text += ". " + textLoadMore
	}
	return text
}

// NewRow formats one record.
func NewRow(record poll.Record, location *time.Location) Row {
	hidden := record.Kind == poll.KindUndisclosed && !record.Closed
	row := Row{
		ID:              record.ID,
		Question:        record.Question,
		Date:            record.StartedAt.In(location).Format("2006-01-02"),
		Summary:         summary(record, hidden),
		Closed:          record.Closed,
		ResultsHidden:   hidden,
		Edited:          record.Edited,
		DecryptionError: record.DecryptionError,
		Answers:         make([]AnswerRow, len(record.Answers)),
	}
	for i, answer := range record.Answers {
		answerRow := AnswerRow{
			Text:     answer.Text,
			Winner:   answer.Winner,
			Selected: answer.Selected,
		}
		if !hidden {
			answerRow.Count = answer.Count
			answerRow.Percent = percent(answer.Count, record.TotalAnswerCount)
		}
		row.Answers[i] = answerRow
	}
	return row
}

func summary(record poll.Record, hidden bool) string {
	switch {
	case record.Closed:
		return "Final result based on " + votes(record.TotalAnswerCount)
	case hidden:
		return textHiddenResults
	default:
		return votes(record.TotalAnswerCount) + " cast"
	}
}

func votes(count int) string {
	if count == 1 {
		return "1 vote"
	}
	return fmt.Sprintf("%d votes", count)
}

func percent(count, total int) int {
	if total <= 0 {
		return 0
	}
	return (count*100 + total/2) / total
}

func recordsEqual(a, b []poll.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
