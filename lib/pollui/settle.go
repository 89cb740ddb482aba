// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"context"
	"errors"

	"github.com/bureau-foundation/pollhistory/lib/pollhistory"
)

// ErrHostStopped is returned by Settle when the host stops first.
var ErrHostStopped = errors.New("poll history stopped before loading settled")

// Settle reports the screen as visible and waits until the selected
// segment has finished loading: the whole page chain has arrived or a
// fetch has failed. It returns the settled snapshot and the first
// fetch error, if any. Used by non-interactive output, which renders
// once and exits.
func Settle(ctx context.Context, host Host) (pollhistory.Snapshot, error) {
	if !host.Dispatch(pollhistory.ViewAppeared{}) {
		return host.Snapshot(), ErrHostStopped
	}

	var failure error
	completions := host.Completions()
	drain := func() {
		for {
			select {
			case completion, ok := <-completions:
				if !ok {
					completions = nil
					return
				}
				if completion.Kind == pollhistory.CompletionGenericError && failure == nil {
					failure = completion.Err
				}
			default:
				return
			}
		}
	}

	snapshots := host.Snapshots()
	for {
		select {
		case <-ctx.Done():
			return host.Snapshot(), ctx.Err()
		case snapshot, ok := <-snapshots:
			if !ok {
				return host.Snapshot(), ErrHostStopped
			}
			// A snapshot's completions are queued before the snapshot
			// itself is offered.
			drain()
			if snapshot.DisplayList != nil && !snapshot.IsLoading && (snapshot.Requested || failure != nil) {
				return snapshot, failure
			}
		}
	}
}
