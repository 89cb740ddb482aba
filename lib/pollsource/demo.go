// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/clock"
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/google/uuid"
)

// demoQuestions are cycled through by RunDemo.
var demoQuestions = []string{
	"Where should the offsite be?",
	"Which day works for the retro?",
	"Tabs or spaces?",
	"Should we adopt the new release cadence?",
}

// RunDemo simulates room activity on a Scripted source until ctx is
// done: every interval it either starts a new live poll or casts a
// vote on the most recent one, closing it after a few votes.
func RunDemo(ctx context.Context, source *Scripted, demoClock clock.Clock, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	var current *poll.Record
	started := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-demoClock.After(interval):
		}

		if current == nil {
			record := poll.Record{
				ID:       "$" + uuid.NewString(),
				Question: demoQuestions[started%len(demoQuestions)],
				Answers: []poll.Answer{
					{ID: "a", Text: "Option A"},
					{ID: "b", Text: "Option B"},
				},
				StartedAt:     demoClock.Now(),
				Kind:          poll.KindDisclosed,
				EventType:     poll.EventStarted,
				MaxSelections: 1,
			}
			started++
			current = &record
			logger.Info("demo poll started", "poll_id", record.ID)
			source.PushLive(record)
			continue
		}

		revised := current.Clone()
		revised.Answers[revised.TotalAnswerCount%2].Count++
		revised.TotalAnswerCount++
		if revised.TotalAnswerCount >= 3 {
			revised.Closed = true
			revised.EventType = poll.EventEnded
			for i := range revised.Answers {
				revised.Answers[i].Winner = revised.Answers[i].Count == 2
			}
		}
		source.PushUpdate(revised)
		if revised.Closed {
			current = nil
		} else {
			current = &revised
		}
	}
}
