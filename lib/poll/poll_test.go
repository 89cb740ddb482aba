// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id string, closed bool, minutes int) Record {
	return Record{
		ID:            id,
		Question:      "question " + id,
		Closed:        closed,
		StartedAt:     epoch.Add(time.Duration(minutes) * time.Minute),
		MaxSelections: 1,
	}
}

func TestSegmentIncludes(t *testing.T) {
	active, past := record("a", false, 0), record("b", true, 0)
	if !SegmentActive.Includes(active) || SegmentActive.Includes(past) {
		t.Error("active segment should include only open polls")
	}
	if !SegmentPast.Includes(past) || SegmentPast.Includes(active) {
		t.Error("past segment should include only closed polls")
	}
}

func TestParseSegment(t *testing.T) {
	for _, segment := range Segments {
		parsed, err := ParseSegment(segment.String())
		if err != nil {
			t.Fatalf("ParseSegment(%q): %v", segment, err)
		}
		if parsed != segment {
			t.Errorf("ParseSegment(%q) = %v", segment, parsed)
		}
	}
	if _, err := ParseSegment("closed"); err == nil {
		t.Error("ParseSegment should reject unknown names")
	}
}

func TestDisplayListOrdering(t *testing.T) {
	records := map[string]Record{
		"b":   record("b", false, 5),
		"a":   record("a", false, 5),
		"new": record("new", false, 10),
		"old": record("old", false, 1),
		"p":   record("p", true, 20),
	}

	list := DisplayList(records, SegmentActive)
	var ids []string
	for _, entry := range list {
		ids = append(ids, entry.ID)
	}
	want := []string{"new", "a", "b", "old"}
	if len(ids) != len(want) {
		t.Fatalf("DisplayList = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("DisplayList = %v, want %v", ids, want)
		}
	}

	if past := DisplayList(records, SegmentPast); len(past) != 1 || past[0].ID != "p" {
		t.Errorf("past DisplayList = %+v", past)
	}
	if CountInSegment(records, SegmentActive) != 4 {
		t.Errorf("CountInSegment(active) = %d, want 4", CountInSegment(records, SegmentActive))
	}
}

func TestDisplayListEmptyIsNonNil(t *testing.T) {
	if list := DisplayList(nil, SegmentActive); list == nil {
		t.Error("DisplayList of no records should be empty, not nil")
	}
}

func TestRecordEqualAndClone(t *testing.T) {
	original := record("a", false, 0)
	original.Answers = []Answer{{ID: "1", Text: "Yes", Count: 2}}

	clone := original.Clone()
	if !clone.Equal(original) {
		t.Fatal("clone should equal original")
	}
	clone.Answers[0].Count = 3
	if original.Answers[0].Count != 2 {
		t.Fatal("Clone shares the answers slice")
	}
	if clone.Equal(original) {
		t.Error("records with different answer counts compare equal")
	}

	sameInstant := original.Clone()
	sameInstant.StartedAt = original.StartedAt.In(time.FixedZone("x", 3600))
	if !sameInstant.Equal(original) {
		t.Error("Equal should compare instants, not locations")
	}
}
