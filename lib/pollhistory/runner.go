// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/pollhistory/lib/clock"
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollsource"
)

const (
	// eventBuffer is the capacity of the runner's event channel.
	eventBuffer = 64

	// completionBuffer is the capacity of the completion channel. The
	// loop blocks when it is full.
	completionBuffer = 16
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Source supplies history and streams. Required.
	Source pollsource.Source

	// Options configures the aggregator.
	Options Options

	// Clock drives continuation timers. Nil uses the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil uses slog.Default().
	Logger *slog.Logger
}

// Runner owns an Aggregator on one goroutine and connects it to a
// Source. Actions, fetch results, timer expiries, and stream records
// are applied one at a time in arrival order.
type Runner struct {
	aggregator *Aggregator
	source     pollsource.Source
	clock      clock.Clock
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	events      chan Event
	snapshots   chan Snapshot
	completions chan Completion
	latest      atomic.Pointer[Snapshot]

	// queue holds events the loop posts to itself (zero-delay
	// continuations). Loop goroutine only.
	queue  []Event
	timers map[poll.Segment]*clock.Timer

	workers   sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// StartRunner subscribes to the source's update and live streams and
// starts the event loop. The Runner stops when ctx is cancelled or
// Close is called.
func StartRunner(ctx context.Context, config RunnerConfig) (*Runner, error) {
	if config.Source == nil {
		return nil, errors.New("pollhistory: RunnerConfig.Source is required")
	}
	runnerClock := config.Clock
	if runnerClock == nil {
		runnerClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	options := config.Options
	if options.Logger == nil {
		options.Logger = logger
	}

	runnerContext, cancel := context.WithCancel(ctx)
	runner := &Runner{
		aggregator:  NewAggregator(options),
		source:      config.Source,
		clock:       runnerClock,
		logger:      logger,
		ctx:         runnerContext,
		cancel:      cancel,
		events:      make(chan Event, eventBuffer),
		snapshots:   make(chan Snapshot, 1),
		completions: make(chan Completion, completionBuffer),
		timers:      make(map[poll.Segment]*clock.Timer),
		done:        make(chan struct{}),
	}

	updates, err := config.Source.Updates(runnerContext)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to poll updates: %w", err)
	}
	live, err := config.Source.LivePolls(runnerContext)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to live polls: %w", err)
	}

	runner.workers.Add(2)
	go runner.forward(updates, func(record poll.Record) Event { return PollUpdated{Record: record} })
	go runner.forward(live, func(record poll.Record) Event { return LivePollArrived{Record: record} })

	runner.publish()
	go runner.loop()
	return runner, nil
}

// Dispatch posts a host action. It returns false once the runner has
// stopped.
func (r *Runner) Dispatch(action Action) bool {
	return r.post(action)
}

// Snapshot returns the most recently published view state.
func (r *Runner) Snapshot() Snapshot {
	return *r.latest.Load()
}

// Snapshots delivers view states, latest-wins: a slow reader sees the
// newest state, not every intermediate one. Closed when the runner
// stops.
func (r *Runner) Snapshots() <-chan Snapshot {
	return r.snapshots
}

// Completions delivers host events in order. Closed when the runner
// stops.
func (r *Runner) Completions() <-chan Completion {
	return r.completions
}

// Done is closed once the event loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Close stops the runner and waits for its goroutines. Idempotent.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
	})
	<-r.done
	r.workers.Wait()
}

func (r *Runner) post(event Event) bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
	}
	select {
	case r.events <- event:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *Runner) loop() {
	defer func() {
		r.cancel()
		for segment, timer := range r.timers {
			timer.Stop()
			delete(r.timers, segment)
		}
		close(r.snapshots)
		close(r.completions)
		close(r.done)
	}()

	lastRevision := r.aggregator.Revision()
	for {
		var event Event
		if len(r.queue) > 0 {
			event = r.queue[0]
			r.queue = r.queue[1:]
		} else {
			select {
			case <-r.ctx.Done():
				return
			case event = <-r.events:
			}
		}
		if r.ctx.Err() != nil {
			return
		}

		// The snapshot is stored before commands run and offered after
		// them: a host holding a completion can read the state that
		// produced it from Snapshot, and a host reading Snapshots finds
		// that state's completions already queued.
		commands := r.aggregator.Update(event)
		var snapshot *Snapshot
		if revision := r.aggregator.Revision(); revision != lastRevision {
			lastRevision = revision
			snapshot = r.store()
		}
		for _, command := range commands {
			r.execute(command)
		}
		if snapshot != nil {
			r.offer(*snapshot)
		}
	}
}

func (r *Runner) execute(command Command) {
	switch command := command.(type) {
	case FetchBatch:
		r.workers.Add(1)
		go r.fetch(command)

	case ScheduleContinuation:
		if previous, ok := r.timers[command.Segment]; ok {
			previous.Stop()
		}
		due := ContinuationDue{Segment: command.Segment, Generation: command.Generation}
		if command.Delay <= 0 {
			delete(r.timers, command.Segment)
			r.queue = append(r.queue, due)
			return
		}
		r.timers[command.Segment] = r.clock.AfterFunc(command.Delay, func() {
			r.post(due)
		})

	case CancelContinuation:
		if timer, ok := r.timers[command.Segment]; ok {
			timer.Stop()
			delete(r.timers, command.Segment)
		}

	case EmitCompletion:
		select {
		case r.completions <- command.Completion:
		case <-r.ctx.Done():
		}
	}
}

func (r *Runner) fetch(command FetchBatch) {
	defer r.workers.Done()
	batch, err := r.source.FetchNextBatch(r.ctx, command.Segment, command.Cursor)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.post(BatchFailed{Segment: command.Segment, Err: err, Generation: command.Generation})
		return
	}
	r.post(BatchLoaded{Segment: command.Segment, Batch: batch, Generation: command.Generation})
}

// forward relays a source stream into the event loop until the stream
// closes or the runner stops.
func (r *Runner) forward(records <-chan poll.Record, wrap func(poll.Record) Event) {
	defer r.workers.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case record, ok := <-records:
			if !ok {
				return
			}
			if !r.post(wrap(record)) {
				return
			}
		}
	}
}

// publish stores the current snapshot and offers it. Used for the
// initial snapshot before the loop starts.
func (r *Runner) publish() {
	r.offer(*r.store())
}

func (r *Runner) store() *Snapshot {
	snapshot := r.aggregator.Snapshot()
	r.latest.Store(&snapshot)
	return &snapshot
}

// offer places snapshot on the snapshot channel, replacing any unread
// one. Only the loop goroutine sends, so the send never blocks.
func (r *Runner) offer(snapshot Snapshot) {
	select {
	case <-r.snapshots:
	default:
	}
	r.snapshots <- snapshot
}
