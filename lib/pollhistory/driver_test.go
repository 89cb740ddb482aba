// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollsource"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// driver runs an Aggregator synchronously against a Scripted source.
// Fetches execute immediately unless holdFetches is set, in which case
// they queue in held until release is called. Continuations are
// recorded and only fire via fireContinuation.
type driver struct {
	t           *testing.T
	aggregator  *Aggregator
	source      *pollsource.Scripted
	holdFetches bool
	held        []FetchBatch
	scheduled   map[poll.Segment]ScheduleContinuation
	completions []Completion
}

func newDriver(t *testing.T, source *pollsource.Scripted, options Options) *driver {
	return &driver{
		t:          t,
		aggregator: NewAggregator(options),
		source:     source,
		scheduled:  make(map[poll.Segment]ScheduleContinuation),
	}
}

func (d *driver) send(event Event) {
	d.t.Helper()
	queue := []Event{event}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, command := range d.aggregator.Update(next) {
			if result := d.execute(command); result != nil {
				queue = append(queue, result)
			}
		}
	}
}

func (d *driver) execute(command Command) Event {
	switch command := command.(type) {
	case FetchBatch:
		if d.holdFetches {
			d.held = append(d.held, command)
			return nil
		}
		return d.fetch(command)
	case ScheduleContinuation:
		d.scheduled[command.Segment] = command
	case CancelContinuation:
		if scheduled, ok := d.scheduled[command.Segment]; ok && scheduled.Generation == command.Generation {
			delete(d.scheduled, command.Segment)
		}
	case EmitCompletion:
		d.completions = append(d.completions, command.Completion)
	}
	return nil
}

func (d *driver) fetch(command FetchBatch) Event {
	batch, err := d.source.FetchNextBatch(context.Background(), command.Segment, command.Cursor)
	if err != nil {
		return BatchFailed{Segment: command.Segment, Err: err, Generation: command.Generation}
	}
	return BatchLoaded{Segment: command.Segment, Batch: batch, Generation: command.Generation}
}

// release executes every held fetch in order.
func (d *driver) release() {
	d.t.Helper()
	held := d.held
	d.held = nil
	for _, command := range held {
		d.send(d.fetch(command))
	}
}

// fireContinuation delivers the scheduled continuation for segment.
func (d *driver) fireContinuation(segment poll.Segment) {
	d.t.Helper()
	scheduled, ok := d.scheduled[segment]
	if !ok {
		d.t.Fatalf("no continuation scheduled for %v", segment)
	}
	delete(d.scheduled, segment)
	d.send(ContinuationDue{Segment: segment, Generation: scheduled.Generation})
}

// outstanding counts held fetches and armed continuations for segment.
func (d *driver) outstanding(segment poll.Segment) int {
	count := 0
	for _, command := range d.held {
		if command.Segment == segment {
			count++
		}
	}
	if _, ok := d.scheduled[segment]; ok {
		count++
	}
	return count
}

func (d *driver) snapshot() Snapshot {
	return d.aggregator.Snapshot()
}

func activePoll(n int, minutes int) poll.Record {
	return poll.Record{
		ID:            "$active-" + string(rune('0'+n)),
		Question:      "Do you like the active poll number " + string(rune('0'+n)) + "?",
		StartedAt:     testEpoch.Add(time.Duration(minutes) * time.Minute),
		MaxSelections: 1,
		Kind:          poll.KindDisclosed,
	}
}

func pastPoll(n int, minutes int) poll.Record {
	record := activePoll(n, minutes)
	record.ID = "$past-" + string(rune('0'+n))
	record.Question = "Do you like the past poll number " + string(rune('0'+n)) + "?"
	record.Closed = true
	record.EventType = poll.EventEnded
	return record
}

// mockPoll mirrors the live poll used throughout the original tests.
func mockPoll() poll.Record {
	return poll.Record{
		ID:               "id",
		Question:         "Do you like polls?",
		StartedAt:        testEpoch,
		TotalAnswerCount: 3,
		Kind:             poll.KindUndisclosed,
		EventType:        poll.EventStarted,
		MaxSelections:    1,
	}
}

func ids(records []poll.Record) []string {
	result := make([]string, len(records))
	for i, record := range records {
		result[i] = record.ID
	}
	return result
}
