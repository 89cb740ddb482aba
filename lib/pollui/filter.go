// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"
)

// FilterModel narrows the visible rows by fuzzy-matching the filter
// text against each poll's question. The filter composes with the
// segment tabs: the segment picks the rows, the filter narrows them
// client-side.
type FilterModel struct {
	// Input is the current filter query text.
	Input string

	// Active is true while the filter input has keyboard focus.
	Active bool

	slab *util.Slab
}

// FilterResult is a row that matched, with the matched rune positions
// in its question for highlighting.
type FilterResult struct {
	Row       Row
	Positions []int
	score     int
}

// Apply returns the rows matching the filter, best match first. Rows
// with equal scores keep their display order. An empty filter returns
// every row with no positions.
func (filter *FilterModel) Apply(rows []Row) []FilterResult {
	results := make([]FilterResult, 0, len(rows))
	if filter.Input == "" {
		for _, row := range rows {
			results = append(results, FilterResult{Row: row})
		}
		return results
	}

	if filter.slab == nil {
		filter.slab = newSlab()
	}
	pattern := []rune(strings.ToLower(filter.Input))
	for _, row := range rows {
		match := FuzzyMatch(row.Question, pattern, filter.slab)
		if !match.Matched {
			continue
		}
		results = append(results, FilterResult{
			Row:       row,
			Positions: match.Positions,
			score:     match.Score,
		})
	}
	slices.SortStableFunc(results, func(a, b FilterResult) int {
		return b.score - a.score
	})
	return results
}

// HandleRune appends a typed character.
func (filter *FilterModel) HandleRune(character rune) {
	filter.Input += string(character)
}

// HandleBackspace removes the last character. Returns true if the
// input changed.
func (filter *FilterModel) HandleBackspace() bool {
	if filter.Input == "" {
		return false
	}
	runes := []rune(filter.Input)
	filter.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the filter input and deactivates it.
func (filter *FilterModel) Clear() {
	filter.Input = ""
	filter.Active = false
}

// View renders the filter bar, or "" when there is nothing to show.
func (filter *FilterModel) View(theme Theme, width int) string {
	if !filter.Active && filter.Input == "" {
		return ""
	}
	if filter.Active {
		cursor := lipgloss.NewStyle().
			Foreground(theme.HeaderForeground).
			Bold(true).
			Render("▎")
		return lipgloss.NewStyle().
			Foreground(theme.NormalText).
			Width(width).
			Render(" / " + filter.Input + cursor)
	}
	return lipgloss.NewStyle().
		Foreground(theme.FaintText).
		Width(width).
		Render(" filter: " + filter.Input)
}
