// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"time"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// pollStart builds a stable m.poll.start event as a JSON-ready map.
func pollStart(id, sender string, at time.Time, question string) map[string]any {
	return map[string]any{
		"event_id":         id,
		"type":             "m.poll.start",
		"sender":           sender,
		"origin_server_ts": at.UnixMilli(),
		"content": map[string]any{
			"m.poll": map[string]any{
				"kind":           "m.disclosed",
				"max_selections": 1,
				"question":       map[string]any{"m.text": []any{map[string]any{"body": question}}},
				"answers": []any{
					map[string]any{"m.id": "yes", "m.text": []any{map[string]any{"body": "Yes"}}},
					map[string]any{"m.id": "no", "m.text": []any{map[string]any{"body": "No"}}},
				},
			},
		},
	}
}

func pollResponse(id, sender, pollID string, at time.Time, selections ...string) map[string]any {
	return map[string]any{
		"event_id":         id,
		"type":             "m.poll.response",
		"sender":           sender,
		"origin_server_ts": at.UnixMilli(),
		"content": map[string]any{
			"m.selections": selections,
			"m.relates_to": map[string]any{"rel_type": "m.reference", "event_id": pollID},
		},
	}
}

func pollEnd(id, sender, pollID string, at time.Time) map[string]any {
	return map[string]any{
		"event_id":         id,
		"type":             "m.poll.end",
		"sender":           sender,
		"origin_server_ts": at.UnixMilli(),
		"content": map[string]any{
			"m.relates_to": map[string]any{"rel_type": "m.reference", "event_id": pollID},
		},
	}
}
