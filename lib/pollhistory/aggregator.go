// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// DefaultPageDelay is the pause before an automatically chained page
// request.
const DefaultPageDelay = 500 * time.Millisecond

// Options tunes an Aggregator.
type Options struct {
	// Segment is the initially selected segment.
	Segment poll.Segment

	// ChainPages caps how many pages one appearance fetches before
	// waiting for the next ViewAppeared. Zero means no cap; a negative
	// value disables chaining, so every page needs its own
	// ViewAppeared.
	ChainPages int

	// PageDelay is the pause before a chained page request. Zero uses
	// DefaultPageDelay; a negative value chains immediately.
	PageDelay time.Duration

	// Logger is used for structured logging. Nil uses slog.Default().
	Logger *slog.Logger
}

// Aggregator holds the poll history view state. It is a pure state
// machine: Update applies one event and returns the commands the
// caller must carry out. It is not safe for concurrent use; Runner
// serializes access.
type Aggregator struct {
	records map[string]poll.Record

	// fromHistory holds the IDs delivered by history batches, as
	// opposed to only by the live stream. A live poll does not count
	// as loaded history for the fetch-on-appear rule.
	fromHistory map[string]struct{}

	segment poll.Segment
	pages   [len(poll.Segments)]PageState

	// loaded is set once any data or failure has arrived, and makes
	// the display list non-nil.
	loaded bool

	generation uint64
	revision   uint64

	chainPages int
	pageDelay  time.Duration
	logger     *slog.Logger
}

// NewAggregator creates an empty aggregator.
func NewAggregator(options Options) *Aggregator {
	pageDelay := options.PageDelay
	switch {
	case pageDelay == 0:
		pageDelay = DefaultPageDelay
	case pageDelay < 0:
		pageDelay = 0
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		records:     make(map[string]poll.Record),
		fromHistory: make(map[string]struct{}),
		segment:     options.Segment,
		chainPages:  options.ChainPages,
		pageDelay:   pageDelay,
		logger:      logger,
	}
}

// Update applies event and returns the commands it requires.
func (a *Aggregator) Update(event Event) []Command {
	switch event := event.(type) {
	case ViewAppeared:
		return a.appear()
	case SegmentChanged:
		return a.changeSegment(event.Segment)
	case SelectedItem:
		return a.selectItem(event.ID)
	case BatchLoaded:
		return a.ingestBatch(event)
	case BatchFailed:
		return a.ingestFailure(event)
	case PollUpdated:
		a.ingestUpdate(event.Record)
		return nil
	case LivePollArrived:
		a.ingestLive(event.Record)
		return nil
	case ContinuationDue:
		return a.continueChain(event)
	default:
		a.logger.Warn("ignoring unknown poll history event", "event", fmt.Sprintf("%T", event))
		return nil
	}
}

// appear applies the fetch-on-appear rule to the current segment.
func (a *Aggregator) appear() []Command {
	segment := a.segment
	page := &a.pages[segment]
	switch {
	case page.InFlight:
		return nil

	case page.Pending:
		// The host asked again while the chain was pausing between
		// pages: fetch the next page now.
		commands := []Command{CancelContinuation{Segment: segment, Generation: page.Generation}}
		page.Pending = false
		return append(commands, a.request(segment))

	case !page.Started && !a.hasHistory(segment):
		page.Chained = 0
		return []Command{a.request(segment)}

	case page.Started && page.HasMore:
		page.Chained = 0
		return []Command{a.request(segment)}
	}
	return nil
}

func (a *Aggregator) changeSegment(segment poll.Segment) []Command {
	if segment != poll.SegmentActive && segment != poll.SegmentPast {
		a.logger.Warn("ignoring unknown poll segment", "segment", segment)
		return nil
	}
	if segment != a.segment {
		a.segment = segment
		a.revision++
	}
	return a.appear()
}

func (a *Aggregator) selectItem(id string) []Command {
	record, ok := a.records[id]
	if !ok {
		a.logger.Debug("selected poll is not loaded", "poll_id", id)
		return nil
	}
	return []Command{EmitCompletion{Completion: Completion{
		Kind:   CompletionSelected,
		Record: record.Clone(),
	}}}
}

// request starts a fetch of the segment's next page.
func (a *Aggregator) request(segment poll.Segment) Command {
	page := &a.pages[segment]
	a.generation++
	page.Started = true
	page.InFlight = true
	page.Generation = a.generation
	a.revision++
	return FetchBatch{Segment: segment, Cursor: page.Cursor, Generation: a.generation}
}

func (a *Aggregator) ingestBatch(event BatchLoaded) []Command {
	page := &a.pages[event.Segment]
	if !page.InFlight || page.Generation != event.Generation {
		a.logger.Debug("dropping stale poll history batch",
			"segment", event.Segment,
			"generation", event.Generation,
		)
		return nil
	}

	for _, record := range event.Batch.Records {
		a.records[record.ID] = record.Clone()
		a.fromHistory[record.ID] = struct{}{}
	}
	page.InFlight = false
	page.HasMore = event.Batch.HasMore
	page.Cursor = ""
	if page.HasMore {
		page.Cursor = event.Batch.Cursor
	}
	page.Chained++
	page.Fetched = true
	a.loaded = true
	a.revision++

	if !page.HasMore || a.chainPages < 0 || (a.chainPages > 0 && page.Chained >= a.chainPages) {
		return nil
	}
	a.generation++
	page.Pending = true
	page.Generation = a.generation
	return []Command{ScheduleContinuation{
		Segment:    event.Segment,
		Delay:      a.pageDelay,
		Generation: a.generation,
	}}
}

func (a *Aggregator) ingestFailure(event BatchFailed) []Command {
	page := &a.pages[event.Segment]
	if !page.InFlight || page.Generation != event.Generation {
		a.logger.Debug("dropping stale poll history failure",
			"segment", event.Segment,
			"generation", event.Generation,
			"error", event.Err,
		)
		return nil
	}

	page.InFlight = false
	if !page.Fetched {
		// No page of this segment ever succeeded: let the next
		// appearance start over.
		page.Started = false
	} else {
		// Resume from the last good cursor on the next appearance.
		page.HasMore = true
	}
	a.loaded = true
	a.revision++

	a.logger.Warn("poll history fetch failed",
		"segment", event.Segment,
		"error", event.Err,
	)
	return []Command{EmitCompletion{Completion: Completion{
		Kind: CompletionGenericError,
		Err:  fmt.Errorf("%w: %w", ErrFetchFailed, event.Err),
	}}}
}

func (a *Aggregator) ingestUpdate(record poll.Record) {
	if _, known := a.records[record.ID]; !known {
		a.logger.Debug("dropping update for unseen poll", "poll_id", record.ID)
		return
	}
	a.records[record.ID] = record.Clone()
	a.revision++
}

func (a *Aggregator) ingestLive(record poll.Record) {
	a.records[record.ID] = record.Clone()
	a.loaded = true
	a.revision++
}

func (a *Aggregator) continueChain(event ContinuationDue) []Command {
	page := &a.pages[event.Segment]
	if !page.Pending || page.Generation != event.Generation {
		return nil
	}
	page.Pending = false
	return []Command{a.request(event.Segment)}
}

// hasHistory reports whether any history-delivered record belongs to
// segment.
func (a *Aggregator) hasHistory(segment poll.Segment) bool {
	for id := range a.fromHistory {
		if record, ok := a.records[id]; ok && segment.Includes(record) {
			return true
		}
	}
	return false
}

// Segment returns the selected segment.
func (a *Aggregator) Segment() poll.Segment {
	return a.segment
}

// Loading reports whether the selected segment has a fetch or
// continuation outstanding.
func (a *Aggregator) Loading() bool {
	return a.pages[a.segment].Outstanding()
}

// Page returns the pagination state of segment.
func (a *Aggregator) Page(segment poll.Segment) PageState {
	return a.pages[segment]
}

// Len returns the number of records held across both segments.
func (a *Aggregator) Len() int {
	return len(a.records)
}

// Record returns the record with id.
func (a *Aggregator) Record(id string) (poll.Record, bool) {
	record, ok := a.records[id]
	if !ok {
		return poll.Record{}, false
	}
	return record.Clone(), true
}

// Revision increases with every state change.
func (a *Aggregator) Revision() uint64 {
	return a.revision
}

// DisplayList derives the ordered records of the selected segment. It
// is nil until data first arrives.
func (a *Aggregator) DisplayList() []poll.Record {
	if !a.loaded {
		return nil
	}
	return poll.DisplayList(a.records, a.segment)
}

// Snapshot captures the current view state.
func (a *Aggregator) Snapshot() Snapshot {
	page := a.pages[a.segment]
	return Snapshot{
		DisplayList: a.DisplayList(),
		IsLoading:   page.Outstanding(),
		Segment:     a.segment,
		HasMore:     page.HasMore,
		Requested:   page.Started,
		Revision:    a.revision,
	}
}
