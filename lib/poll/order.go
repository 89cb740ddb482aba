// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"cmp"
	"slices"
)

// CompareDisplay orders records newest start first, breaking ties by
// ascending ID so the order is total and deterministic.
func CompareDisplay(a, b Record) int {
	if byTime := b.StartedAt.Compare(a.StartedAt); byTime != 0 {
		return byTime
	}
	return cmp.Compare(a.ID, b.ID)
}

// DisplayList filters records by segment and sorts them with
// CompareDisplay. The input map is not modified. The result is never
// nil, so callers can distinguish "derived, empty" from "not derived".
func DisplayList(records map[string]Record, segment Segment) []Record {
	list := make([]Record, 0, len(records))
	for _, record := range records {
		if segment.Includes(record) {
			list = append(list, record)
		}
	}
	slices.SortFunc(list, CompareDisplay)
	return list
}

// CountInSegment returns how many records belong to segment.
func CountInSegment(records map[string]Record, segment Segment) int {
	count := 0
	for _, record := range records {
		if segment.Includes(record) {
			count++
		}
	}
	return count
}
