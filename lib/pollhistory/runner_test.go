// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/clock"
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollsource"
	"github.com/bureau-foundation/pollhistory/lib/testutil"
)

const testTimeout = 5 * time.Second

func startTestRunner(t *testing.T, source pollsource.Source, testClock clock.Clock, options Options) *Runner {
	t.Helper()
	runner, err := StartRunner(context.Background(), RunnerConfig{
		Source:  source,
		Options: options,
		Clock:   testClock,
	})
	if err != nil {
		t.Fatalf("StartRunner: %v", err)
	}
	t.Cleanup(runner.Close)
	return runner
}

// waitForSnapshot reads published snapshots until one satisfies match.
func waitForSnapshot(t *testing.T, runner *Runner, description string, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for snapshot: %s (last %+v)", description, runner.Snapshot())
		}
		snapshot := testutil.RequireReceive(t, runner.Snapshots(), remaining, description)
		if match(snapshot) {
			return snapshot
		}
	}
}

func TestRunnerInitialSnapshot(t *testing.T) {
	runner := startTestRunner(t, pollsource.NewMock(), clock.Fake(testEpoch), Options{})
	snapshot := runner.Snapshot()
	if snapshot.DisplayList != nil || snapshot.IsLoading || snapshot.Segment != poll.SegmentActive {
		t.Errorf("initial snapshot = %+v", snapshot)
	}
}

func TestRunnerLoadsOnAppear(t *testing.T) {
	runner := startTestRunner(t, pollsource.NewMock(), clock.Fake(testEpoch), Options{})
	runner.Dispatch(ViewAppeared{})

	snapshot := waitForSnapshot(t, runner, "loaded history", func(s Snapshot) bool {
		return s.DisplayList != nil && !s.IsLoading
	})
	if len(snapshot.DisplayList) != 10 {
		t.Errorf("display list has %d polls, want 10 active", len(snapshot.DisplayList))
	}
	if latest := runner.Snapshot(); latest.Revision < snapshot.Revision {
		t.Errorf("Snapshot() is behind the channel: %d < %d", latest.Revision, snapshot.Revision)
	}
}

func TestRunnerChainsAfterPageDelay(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	source := pollsource.NewScripted(
		pollsource.StepBatch([]poll.Record{activePoll(1, 2)}, true),
		pollsource.StepBatch([]poll.Record{activePoll(2, 1)}, false),
	)
	runner := startTestRunner(t, source, fakeClock, Options{PageDelay: time.Second})
	runner.Dispatch(ViewAppeared{})

	waitForSnapshot(t, runner, "first page, chain pending", func(s Snapshot) bool {
		return len(s.DisplayList) == 1 && s.IsLoading
	})

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(999 * time.Millisecond)
	if len(source.Calls()) != 1 {
		t.Fatal("continuation fired before the page delay elapsed")
	}
	fakeClock.Advance(time.Millisecond)

	waitForSnapshot(t, runner, "second page", func(s Snapshot) bool {
		return len(s.DisplayList) == 2 && !s.IsLoading
	})
}

func TestRunnerChainsImmediatelyWithNegativeDelay(t *testing.T) {
	source := pollsource.NewScripted(
		pollsource.StepBatch([]poll.Record{activePoll(1, 3)}, true),
		pollsource.StepBatch([]poll.Record{activePoll(2, 2)}, true),
		pollsource.StepBatch([]poll.Record{activePoll(3, 1)}, false),
	)
	runner := startTestRunner(t, source, clock.Fake(testEpoch), Options{PageDelay: -1})
	runner.Dispatch(ViewAppeared{})

	waitForSnapshot(t, runner, "whole chain", func(s Snapshot) bool {
		return len(s.DisplayList) == 3 && !s.IsLoading
	})
}

func TestRunnerEmitsOneErrorPerFailure(t *testing.T) {
	failure := errors.New("homeserver unreachable")
	runner := startTestRunner(t, pollsource.NewScripted(pollsource.StepFailure(failure)), clock.Fake(testEpoch), Options{})
	runner.Dispatch(ViewAppeared{})

	completion := testutil.RequireReceive(t, runner.Completions(), testTimeout, "generic error")
	if completion.Kind != CompletionGenericError || !errors.Is(completion.Err, failure) {
		t.Errorf("completion = %+v", completion)
	}
	testutil.RequireQuiet(t, runner.Completions(), 50*time.Millisecond, "second completion for one failure")

	snapshot := runner.Snapshot()
	if snapshot.IsLoading || snapshot.DisplayList == nil {
		t.Errorf("snapshot after failure = %+v", snapshot)
	}
}

func TestRunnerStreams(t *testing.T) {
	source := pollsource.NewScripted(pollsource.StepBatch([]poll.Record{activePoll(1, 1)}, false))
	runner := startTestRunner(t, source, clock.Fake(testEpoch), Options{})
	runner.Dispatch(ViewAppeared{})
	waitForSnapshot(t, runner, "history", func(s Snapshot) bool { return len(s.DisplayList) == 1 })

	source.PushLive(mockPoll())
	waitForSnapshot(t, runner, "live poll", func(s Snapshot) bool { return len(s.DisplayList) == 2 })

	revised := activePoll(1, 1)
	revised.Question = "foo"
	source.PushUpdate(revised)
	source.PushUpdate(poll.Record{ID: "$unknown", Question: "ghost", StartedAt: testEpoch})
	snapshot := waitForSnapshot(t, runner, "update", func(s Snapshot) bool {
		for _, record := range s.DisplayList {
			if record.Question == "foo" {
				return true
			}
		}
		return false
	})
	if len(snapshot.DisplayList) != 2 {
		t.Errorf("unknown update leaked into the display list: %v", ids(snapshot.DisplayList))
	}
}

func TestRunnerSelection(t *testing.T) {
	runner := startTestRunner(t, pollsource.NewMock(), clock.Fake(testEpoch), Options{})
	runner.Dispatch(ViewAppeared{})
	snapshot := waitForSnapshot(t, runner, "history", func(s Snapshot) bool { return len(s.DisplayList) > 0 })

	runner.Dispatch(SelectedItem{ID: snapshot.DisplayList[0].ID})
	completion := testutil.RequireReceive(t, runner.Completions(), testTimeout, "selection")
	if completion.Kind != CompletionSelected || completion.Record.ID != snapshot.DisplayList[0].ID {
		t.Errorf("completion = %+v", completion)
	}
}

func TestRunnerTeardownWithFetchInFlight(t *testing.T) {
	source := pollsource.NewScripted(pollsource.StepPending())
	runner, err := StartRunner(context.Background(), RunnerConfig{Source: source, Clock: clock.Fake(testEpoch)})
	if err != nil {
		t.Fatalf("StartRunner: %v", err)
	}
	runner.Dispatch(ViewAppeared{})
	waitForSnapshot(t, runner, "fetch in flight", func(s Snapshot) bool { return s.IsLoading })

	runner.Close()
	testutil.RequireClosed(t, runner.Done(), testTimeout, "runner loop")

	if runner.Dispatch(ViewAppeared{}) {
		t.Error("Dispatch after Close should report false")
	}
	before := runner.Snapshot()
	source.PushLive(mockPoll())
	source.PushUpdate(mockPoll())
	if after := runner.Snapshot(); after.Revision != before.Revision {
		t.Error("records were ingested after teardown")
	}

	deadline := time.Now().Add(testTimeout)
	for {
		updates, live := source.Subscribers()
		if updates == 0 && live == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("streams still subscribed after teardown: updates=%d live=%d", updates, live)
		}
		time.Sleep(time.Millisecond)
	}

	// Close is idempotent.
	runner.Close()
}

func TestRunnerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner, err := StartRunner(ctx, RunnerConfig{Source: pollsource.NewMock(), Clock: clock.Fake(testEpoch)})
	if err != nil {
		t.Fatalf("StartRunner: %v", err)
	}
	cancel()
	testutil.RequireClosed(t, runner.Done(), testTimeout, "runner loop after context cancel")
	runner.Close()
}

func TestRunnerPendingContinuationStoppedOnClose(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	source := pollsource.NewScripted(pollsource.StepLoading())
	runner := startTestRunner(t, source, fakeClock, Options{})
	runner.Dispatch(ViewAppeared{})
	fakeClock.WaitForTimers(1)

	runner.Close()
	if pending := fakeClock.PendingCount(); pending != 0 {
		t.Errorf("%d timers still armed after Close", pending)
	}
	fakeClock.Advance(time.Hour)
	if calls := len(source.Calls()); calls != 1 {
		t.Errorf("continuation fetched after Close: %d calls", calls)
	}
}

func TestRunnerSerializesConcurrentProducers(t *testing.T) {
	source := pollsource.NewScripted(pollsource.StepEmpty())
	runner := startTestRunner(t, source, clock.Fake(testEpoch), Options{})

	const producers, perProducer = 8, 25
	var group sync.WaitGroup
	for producer := range producers {
		group.Add(1)
		go func() {
			defer group.Done()
			for i := range perProducer {
				record := poll.Record{
					ID:            fmt.Sprintf("$live-%d-%d", producer, i),
					Question:      "concurrent?",
					StartedAt:     testEpoch.Add(time.Duration(i) * time.Second),
					MaxSelections: 1,
				}
				source.PushLive(record)
				if i%5 == 0 {
					runner.Dispatch(ViewAppeared{})
					runner.Dispatch(SegmentChanged{Segment: poll.SegmentActive})
				}
			}
		}()
	}
	group.Wait()

	snapshot := waitForSnapshot(t, runner, "every live poll", func(s Snapshot) bool {
		return len(s.DisplayList) == producers*perProducer
	})
	for i := 1; i < len(snapshot.DisplayList); i++ {
		if poll.CompareDisplay(snapshot.DisplayList[i-1], snapshot.DisplayList[i]) > 0 {
			t.Fatalf("display list out of order at %d", i)
		}
	}
}
