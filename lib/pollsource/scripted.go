// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"context"
	"errors"
	"sync"

	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// ErrScripted is the failure StepFailure returns when given a nil error.
var ErrScripted = errors.New("scripted fetch failure")

// Step is one scripted FetchNextBatch outcome.
type Step struct {
	Batch Batch
	Err   error

	// Pending makes the fetch block until its context is done.
	Pending bool
}

// StepBatch returns records with the given HasMore flag.
func StepBatch(records []poll.Record, hasMore bool) Step {
	return Step{Batch: Batch{Records: records, HasMore: hasMore}}
}

// StepLoading is an empty page that reports more history. The
// aggregator keeps loading while it waits to continue the chain.
func StepLoading() Step {
	return Step{Batch: Batch{HasMore: true}}
}

// StepEmpty is the terminal empty page.
func StepEmpty() Step {
	return Step{}
}

// StepFailure fails the fetch with err, or ErrScripted if err is nil.
func StepFailure(err error) Step {
	if err == nil {
		err = ErrScripted
	}
	return Step{Err: err}
}

// StepPending never completes on its own.
func StepPending() Step {
	return Step{Pending: true}
}

// Call records the arguments of one FetchNextBatch call.
type Call struct {
	Segment poll.Segment
	Cursor  string
}

// Scripted is a Source that replays steps in order, one per fetch
// regardless of segment. Once the steps run out every fetch returns the
// fallback batch. Records pushed with PushUpdate and PushLive reach the
// current subscribers.
type Scripted struct {
	mutex    sync.Mutex
	steps    []Step
	fallback Batch
	calls    []Call

	live    feed
	updates feed
}

var _ Source = (*Scripted)(nil)

// NewScripted creates a source replaying steps, then empty batches.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// NewMock creates a source whose first fetch returns MockPolls and
// which has no further history, mirroring the default mock service.
func NewMock() *Scripted {
	return NewScripted().WithFallback(Batch{Records: MockPolls(mockEpoch)})
}

// WithFallback sets the batch returned once the steps are exhausted.
func (s *Scripted) WithFallback(batch Batch) *Scripted {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.fallback = batch
	return s
}

// FetchNextBatch consumes the next step.
func (s *Scripted) FetchNextBatch(ctx context.Context, segment poll.Segment, cursor string) (Batch, error) {
	s.mutex.Lock()
	s.calls = append(s.calls, Call{Segment: segment, Cursor: cursor})
	step := Step{Batch: s.fallback}
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mutex.Unlock()

	if step.Pending {
		<-ctx.Done()
		return Batch{}, ctx.Err()
	}
	if step.Err != nil {
		return Batch{}, step.Err
	}
	batch := step.Batch
	batch.Records = cloneRecords(batch.Records)
	if batch.HasMore && batch.Cursor == "" {
		batch.Cursor = "scripted"
	}
	return batch, nil
}

// Updates subscribes to records pushed with PushUpdate.
func (s *Scripted) Updates(ctx context.Context) (<-chan poll.Record, error) {
	return s.updates.subscribe(ctx), nil
}

// LivePolls subscribes to records pushed with PushLive.
func (s *Scripted) LivePolls(ctx context.Context) (<-chan poll.Record, error) {
	return s.live.subscribe(ctx), nil
}

// PushUpdate delivers record to Updates subscribers.
func (s *Scripted) PushUpdate(record poll.Record) {
	s.updates.publish(record)
}

// PushLive delivers record to LivePolls subscribers.
func (s *Scripted) PushLive(record poll.Record) {
	s.live.publish(record)
}

// Subscribers returns the number of open Updates and LivePolls
// subscriptions.
func (s *Scripted) Subscribers() (updates, live int) {
	return s.updates.subscriberCount(), s.live.subscriberCount()
}

// Calls returns the FetchNextBatch calls made so far.
func (s *Scripted) Calls() []Call {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]Call(nil), s.calls...)
}

func cloneRecords(records []poll.Record) []poll.Record {
	if records == nil {
		return nil
	}
	cloned := make([]poll.Record, len(records))
	for i, record := range records {
		cloned[i] = record.Clone()
	}
	return cloned
}
