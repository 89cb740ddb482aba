// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"slices"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching one string against a pattern.
type FuzzyResult struct {
	Matched bool
	Score   int

	// Positions are the rune indices of matched characters, ascending.
	Positions []int
}

var fuzzyInit sync.Once

// newSlab allocates scratch space for FuzzyMatch. A slab is not safe
// for concurrent use; callers keep one per goroutine.
func newSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// FuzzyMatch scores text against pattern with fzf's V2 algorithm.
// Matching is case-insensitive; pattern must already be lower case.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{Matched: true}
	}
	fuzzyInit.Do(func() { algo.Init("default") })

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, pattern, true, slab)
	if result.Start < 0 {
		return FuzzyResult{}
	}
	match := FuzzyResult{Matched: true, Score: result.Score}
	if positions != nil {
		match.Positions = make([]int, len(*positions))
		copy(match.Positions, *positions)
		slices.Sort(match.Positions)
	}
	return match
}
