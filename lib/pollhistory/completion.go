// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollhistory

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// ErrFetchFailed is the only failure the aggregator models. Source
// errors are wrapped beneath it.
var ErrFetchFailed = errors.New("poll history fetch failed")

// CompletionKind identifies what a Completion reports.
type CompletionKind int

const (
	// CompletionGenericError reports one failed fetch.
	CompletionGenericError CompletionKind = iota
	// CompletionSelected reports that the user selected a poll.
	CompletionSelected
)

func (k CompletionKind) String() string {
	switch k {
	case CompletionGenericError:
		return "generic_error"
	case CompletionSelected:
		return "selected"
	default:
		return fmt.Sprintf("CompletionKind(%d)", int(k))
	}
}

// Completion is an event for the host screen.
type Completion struct {
	Kind CompletionKind

	// Record is the selected poll for CompletionSelected.
	Record poll.Record

	// Err wraps ErrFetchFailed for CompletionGenericError.
	Err error
}
