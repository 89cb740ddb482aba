// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/clock"
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollhistory"
	"github.com/bureau-foundation/pollhistory/lib/pollsource"
)

func startRunner(t *testing.T, source pollsource.Source) *pollhistory.Runner {
	t.Helper()
	runner, err := pollhistory.StartRunner(context.Background(), pollhistory.RunnerConfig{
		Source:  source,
		Options: pollhistory.Options{PageDelay: -1},
		Clock:   clock.Fake(testEpoch),
	})
	if err != nil {
		t.Fatalf("StartRunner: %v", err)
	}
	t.Cleanup(runner.Close)
	return runner
}

func settle(t *testing.T, host Host) (pollhistory.Snapshot, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return Settle(ctx, host)
}

func TestSettleWaitsForChain(t *testing.T) {
	source := pollsource.NewScripted(
		pollsource.StepBatch([]poll.Record{testPoll("$a", "First?", 10, false)}, true),
		pollsource.StepBatch([]poll.Record{testPoll("$b", "Second?", 20, false)}, true),
		pollsource.StepEmpty(),
	)
	snapshot, err := settle(t, startRunner(t, source))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if snapshot.IsLoading || len(snapshot.DisplayList) != 2 {
		t.Errorf("settled snapshot = %+v", snapshot)
	}
	if calls := source.Calls(); len(calls) != 3 {
		t.Errorf("fetches = %d, want 3", len(calls))
	}
}

func TestSettleReportsFailure(t *testing.T) {
	source := pollsource.NewScripted(
		pollsource.StepBatch([]poll.Record{testPoll("$a", "First?", 10, false)}, true),
		pollsource.StepFailure(errors.New("homeserver unavailable")),
	)
	snapshot, err := settle(t, startRunner(t, source))
	if !errors.Is(err, pollhistory.ErrFetchFailed) {
		t.Fatalf("Settle error = %v, want ErrFetchFailed", err)
	}
	if len(snapshot.DisplayList) != 1 {
		t.Errorf("partial history should be kept, got %+v", snapshot.DisplayList)
	}
}

func TestSettleReportsFirstPageFailure(t *testing.T) {
	source := pollsource.NewScripted(pollsource.StepFailure(nil))
	snapshot, err := settle(t, startRunner(t, source))
	if !errors.Is(err, pollsource.ErrScripted) {
		t.Fatalf("Settle error = %v, want ErrScripted", err)
	}
	if snapshot.DisplayList == nil || len(snapshot.DisplayList) != 0 {
		t.Errorf("display list = %#v, want empty", snapshot.DisplayList)
	}
}

func TestSettleHostStopped(t *testing.T) {
	runner := startRunner(t, pollsource.NewScripted(pollsource.StepPending()))
	runner.Close()
	if _, err := settle(t, runner); !errors.Is(err, ErrHostStopped) {
		t.Errorf("Settle error = %v, want ErrHostStopped", err)
	}
}

func TestSettleContextCancelled(t *testing.T) {
	runner := startRunner(t, pollsource.NewScripted(pollsource.StepPending()))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := Settle(ctx, runner); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Settle error = %v, want DeadlineExceeded", err)
	}
}
