// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollhistory"
)

var testEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// recordingDispatcher records every action it receives.
type recordingDispatcher struct {
	mutex   sync.Mutex
	actions []pollhistory.Action
	stopped bool
}

func (d *recordingDispatcher) Dispatch(action pollhistory.Action) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return false
	}
	d.actions = append(d.actions, action)
	return true
}

func (d *recordingDispatcher) recorded() []pollhistory.Action {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]pollhistory.Action(nil), d.actions...)
}

func testPoll(id, question string, minutesAgo int, closed bool) poll.Record {
	record := poll.Record{
		ID:       id,
		Question: question,
		Answers: []poll.Answer{
			{ID: "yes", Text: "Yes", Count: 2, Selected: true},
			{ID: "no", Text: "No", Count: 1},
		},
		Closed:           closed,
		StartedAt:        testEpoch.Add(-time.Duration(minutesAgo) * time.Minute),
		TotalAnswerCount: 3,
		Kind:             poll.KindDisclosed,
		MaxSelections:    1,
	}
	if closed {
		record.EventType = poll.EventEnded
		record.Answers[0].Winner = true
	}
	return record
}

func activeSnapshot(records ...poll.Record) pollhistory.Snapshot {
	if records == nil {
		records = []poll.Record{}
	}
	return pollhistory.Snapshot{DisplayList: records, Segment: poll.SegmentActive, Requested: true}
}

func TestAdapterInitialView(t *testing.T) {
	adapter := NewAdapter(&recordingDispatcher{}, time.UTC)

	view, changed := adapter.Apply(pollhistory.Snapshot{})
	if changed {
		t.Error("nil display list with no loading should not change the initial view")
	}
	if view.EmptyText != textLoading {
		t.Errorf("EmptyText = %q, want %q", view.EmptyText, textLoading)
	}
	if view.Title != "Active polls" {
		t.Errorf("Title = %q", view.Title)
	}
}

func TestAdapterRows(t *testing.T) {
	adapter := NewAdapter(&recordingDispatcher{}, time.UTC)

	view, changed := adapter.Apply(activeSnapshot(
		testPoll("$a", "Lunch?", 10, false),
		testPoll("$b", "Dinner?", 20, false),
	))
	if !changed {
		t.Fatal("first data should change the view")
	}
	if len(view.Rows) != 2 || view.Rows[0].ID != "$a" || view.Rows[1].ID != "$b" {
		t.Fatalf("rows = %+v", view.Rows)
	}
	row := view.Rows[0]
	if row.Date != "2026-01-15" {
		t.Errorf("Date = %q", row.Date)
	}
	if row.Summary != "3 votes cast" {
		t.Errorf("Summary = %q", row.Summary)
	}
	if row.Answers[0].Count != 2 || row.Answers[0].Percent != 67 || !row.Answers[0].Selected {
		t.Errorf("first answer = %+v", row.Answers[0])
	}
	if row.Answers[1].Percent != 33 {
		t.Errorf("second answer percent = %d", row.Answers[1].Percent)
	}
	if view.EmptyText != "" {
		t.Errorf("EmptyText = %q with rows present", view.EmptyText)
	}
}

func TestAdapterClosedPollSummary(t *testing.T) {
	row := NewRow(testPoll("$p", "Done?", 0, true), time.UTC)
	if row.Summary != "Final result based on 3 votes" {
		t.Errorf("Summary = %q", row.Summary)
	}
	if !row.Answers[0].Winner || row.Answers[1].Winner {
		t.Errorf("winners = %+v", row.Answers)
	}

	single := testPoll("$s", "One?", 0, true)
	single.TotalAnswerCount = 1
	if got := NewRow(single, time.UTC).Summary; got != "Final result based on 1 vote" {
		t.Errorf("singular summary = %q", got)
	}
}

func TestAdapterHidesUndisclosedResults(t *testing.T) {
	record := testPoll("$u", "Secret?", 0, false)
	record.Kind = poll.KindUndisclosed

	row := NewRow(record, time.UTC)
	if !row.ResultsHidden {
		t.Fatal("open undisclosed poll should hide results")
	}
	if row.Summary != textHiddenResults {
		t.Errorf("Summary = %q", row.Summary)
	}
	for _, answer := range row.Answers {
		if answer.Count != 0 || answer.Percent != 0 {
			t.Errorf("hidden answer shows counts: %+v", answer)
		}
	}
	if !row.Answers[0].Selected {
		t.Error("own vote should stay visible on undisclosed polls")
	}

	record.Closed = true
	if NewRow(record, time.UTC).ResultsHidden {
		t.Error("ended undisclosed poll should show results")
	}
}

func TestAdapterEmptyTexts(t *testing.T) {
	tests := []struct {
		name     string
		snapshot pollhistory.Snapshot
		want     string
	}{
		{
			name:     "loading",
			snapshot: pollhistory.Snapshot{IsLoading: true},
			want:     textLoading,
		},
		{
			name:     "no active polls",
			snapshot: activeSnapshot(),
			want:     textNoActive,
		},
		{
			name:     "no past polls",
			snapshot: pollhistory.Snapshot{DisplayList: []poll.Record{}, Segment: poll.SegmentPast},
			want:     textNoPast,
		},
		{
			name:     "more history available",
			snapshot: pollhistory.Snapshot{DisplayList: []poll.Record{}, HasMore: true},
			want:     textNoActive + ". " + textLoadMore,
		},
		{
			name:     "loading with empty list",
			snapshot: pollhistory.Snapshot{DisplayList: []poll.Record{}, IsLoading: true},
			want:     textLoading,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			adapter := NewAdapter(&recordingDispatcher{}, time.UTC)
			view, _ := adapter.Apply(test.snapshot)
			if view.EmptyText != test.want {
				t.Errorf("EmptyText = %q, want %q", view.EmptyText, test.want)
			}
		})
	}
}

func TestAdapterSkipsIdenticalSnapshots(t *testing.T) {
	adapter := NewAdapter(&recordingDispatcher{}, time.UTC)
	first := activeSnapshot(testPoll("$a", "Lunch?", 10, false))
	if _, changed := adapter.Apply(first); !changed {
		t.Fatal("first data should change the view")
	}

	// A new revision with structurally equal records is not a change.
	again := activeSnapshot(testPoll("$a", "Lunch?", 10, false))
	again.Revision = 7
	if _, changed := adapter.Apply(again); changed {
		t.Error("equal records reported as a change")
	}

	voted := testPoll("$a", "Lunch?", 10, false)
	voted.Answers[1].Count = 5
	if _, changed := adapter.Apply(activeSnapshot(voted)); !changed {
		t.Error("vote count change not reported")
	}

	loading := activeSnapshot(voted)
	loading.IsLoading = true
	if _, changed := adapter.Apply(loading); !changed {
		t.Error("loading change not reported")
	}
}

func TestAdapterFailureBanner(t *testing.T) {
	adapter := NewAdapter(&recordingDispatcher{}, time.UTC)
	adapter.Apply(activeSnapshot(testPoll("$a", "Lunch?", 10, false)))

	view := adapter.Fail(fmt.Errorf("%w: %w", pollhistory.ErrFetchFailed, errors.New("boom")))
	if view.Error != textFetchFailed {
		t.Errorf("Error = %q, want %q", view.Error, textFetchFailed)
	}
	if len(view.Rows) != 1 {
		t.Error("failure should keep rows")
	}

	view = adapter.Fail(errors.New("unexpected"))
	if view.Error != textFetchFailed+": unexpected" {
		t.Errorf("Error = %q", view.Error)
	}

	// The banner survives unrelated snapshots and clears when a new
	// load cycle starts.
	live := activeSnapshot(testPoll("$a", "Lunch?", 10, false), testPoll("$b", "Tea?", 1, false))
	view, _ = adapter.Apply(live)
	if view.Error == "" {
		t.Error("banner cleared by a live poll")
	}
	live.IsLoading = true
	view, changed := adapter.Apply(live)
	if !changed || view.Error != "" {
		t.Errorf("new load cycle should clear the banner: changed=%v error=%q", changed, view.Error)
	}
}

func TestAdapterForwardsIntents(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	adapter := NewAdapter(dispatcher, time.UTC)
	adapter.Apply(activeSnapshot(
		testPoll("$a", "Lunch?", 10, false),
		testPoll("$b", "Dinner?", 20, false),
	))

	adapter.Appeared()
	adapter.ChangeSegment(poll.SegmentPast)
	if !adapter.Select(1) {
		t.Error("Select(1) returned false")
	}
	if adapter.Select(2) || adapter.Select(-1) {
		t.Error("out-of-range Select returned true")
	}

	actions := dispatcher.recorded()
	want := []pollhistory.Action{
		pollhistory.ViewAppeared{},
		pollhistory.SegmentChanged{Segment: poll.SegmentPast},
		pollhistory.SelectedItem{ID: "$b"},
	}
	if len(actions) != len(want) {
		t.Fatalf("actions = %#v", actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("action %d = %#v, want %#v", i, actions[i], want[i])
		}
	}

	dispatcher.stopped = true
	if adapter.Appeared() {
		t.Error("Appeared should report a stopped runner")
	}
}
