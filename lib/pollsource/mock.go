// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// mockEpoch anchors NewMock's polls so repeated runs render alike.
var mockEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// mockPollCount is the number of polls per segment in MockPolls.
const mockPollCount = 10

// MockPolls returns a fixed set of active and past polls. Active poll N
// asks "Do you like the active poll number N?" and started N hours
// before now; past polls follow the same pattern a day earlier.
func MockPolls(now time.Time) []poll.Record {
	records := make([]poll.Record, 0, 2*mockPollCount)
	for i := 1; i <= mockPollCount; i++ {
		records = append(records, mockPoll(
			fmt.Sprintf("$active-%d", i),
			fmt.Sprintf("Do you like the active poll number %d?", i),
			now.Add(-time.Duration(i)*time.Hour),
			false,
		))
	}
	for i := 1; i <= mockPollCount; i++ {
		records = append(records, mockPoll(
			fmt.Sprintf("$past-%d", i),
			fmt.Sprintf("Do you like the past poll number %d?", i),
			now.Add(-24*time.Hour-time.Duration(i)*time.Hour),
			true,
		))
	}
	return records
}

func mockPoll(id, question string, startedAt time.Time, closed bool) poll.Record {
	record := poll.Record{
		ID:       id,
		Question: question,
		Answers: []poll.Answer{
			{ID: "yes", Text: "Yes, of course!", Count: 2},
			{ID: "no", Text: "No, I don't :-(", Count: 1},
		},
		Closed:           closed,
		StartedAt:        startedAt,
		TotalAnswerCount: 3,
		Kind:             poll.KindDisclosed,
		EventType:        poll.EventStarted,
		MaxSelections:    1,
	}
	if closed {
		record.EventType = poll.EventEnded
		record.Answers[0].Winner = true
	}
	return record
}
