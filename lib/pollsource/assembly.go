// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/ref"
	"github.com/bureau-foundation/pollhistory/messaging"
)

// assembly is the event-folding core shared by MatrixSource and
// FileSource: one assembler fed by both history pages and the live
// stream, with the two record feeds hanging off it.
type assembly struct {
	mutex     sync.Mutex
	assembler *poll.Assembler
	logger    *slog.Logger

	live    feed
	updates feed
}

func newAssembly(viewer ref.UserID, logger *slog.Logger) *assembly {
	return &assembly{
		assembler: poll.NewAssembler(viewer),
		logger:    logger,
	}
}

// ingestPage folds one history page (newest event first) and returns
// the current record of every poll the page started or revised, in
// first-touched order. A start event seen on an earlier fetch of the
// same page still yields its record.
func (a *assembly) ingestPage(events []messaging.Event) []poll.Record {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var touched []string
	seen := make(map[string]struct{})
	touch := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			touched = append(touched, id)
		}
	}

	for _, event := range events {
		pollID, change, err := a.assembler.Add(event)
		if err != nil {
			a.logger.Debug("skipping malformed poll event",
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}
		switch {
		case change != poll.ChangeNone:
			touch(pollID)
		case a.assembler.Known(event.EventID.String()):
			touch(event.EventID.String())
		}
	}

	records := make([]poll.Record, 0, len(touched))
	for _, id := range touched {
		if record, ok := a.assembler.Record(id); ok {
			records = append(records, record)
		}
	}
	return records
}

// ingestStream folds events from the live stream. New polls go to the
// live feed and revisions of known polls to the updates feed.
func (a *assembly) ingestStream(events []messaging.Event) {
	type publication struct {
		record  poll.Record
		started bool
	}
	var pending []publication

	a.mutex.Lock()
	for _, event := range events {
		pollID, change, err := a.assembler.Add(event)
		if err != nil {
			a.logger.Debug("skipping malformed poll event",
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}
		if change == poll.ChangeNone {
			continue
		}
		record, ok := a.assembler.Record(pollID)
		if !ok {
			continue
		}
		pending = append(pending, publication{record: record, started: change == poll.ChangeStarted})
	}
	a.mutex.Unlock()

	for _, entry := range pending {
		if entry.started {
			a.live.publish(entry.record)
		} else {
			a.updates.publish(entry.record)
		}
	}
}
