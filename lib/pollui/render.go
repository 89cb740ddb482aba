// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// resultBarWidth is the cell width of the vote share bar.
const resultBarWidth = 20

// styles binds a theme to a renderer. The TUI uses the default
// renderer; plain output uses one bound to its writer so the colour
// profile matches the destination.
type styles struct {
	normal    lipgloss.Style
	faint     lipgloss.Style
	bold      lipgloss.Style
	selected  lipgloss.Style
	winner    lipgloss.Style
	voted     lipgloss.Style
	bar       lipgloss.Style
	barRest   lipgloss.Style
	warning   lipgloss.Style
	failure   lipgloss.Style
	header    lipgloss.Style
	border    lipgloss.Style
	helpText  lipgloss.Style
	highlight lipgloss.Style
	code      lipgloss.Style
}

func newStyles(renderer *lipgloss.Renderer, theme Theme) styles {
	return styles{
		normal: renderer.NewStyle().Foreground(theme.NormalText),
		faint:  renderer.NewStyle().Foreground(theme.FaintText),
		bold:   renderer.NewStyle().Foreground(theme.NormalText).Bold(true),
		selected: renderer.NewStyle().
			Foreground(theme.SelectedForeground).
			Background(theme.SelectedBackground).
			Bold(true),
		winner:    renderer.NewStyle().Foreground(theme.WinnerForeground).Bold(true),
		voted:     renderer.NewStyle().Foreground(theme.SelectedAnswer),
		bar:       renderer.NewStyle().Foreground(theme.ResultBar),
		barRest:   renderer.NewStyle().Foreground(theme.ResultBarRemainder),
		warning:   renderer.NewStyle().Foreground(theme.WarningForeground),
		failure:   renderer.NewStyle().Foreground(theme.ErrorForeground).Bold(true),
		header:    renderer.NewStyle().Foreground(theme.HeaderForeground).Bold(true),
		border:    renderer.NewStyle().Foreground(theme.BorderColor),
		helpText:  renderer.NewStyle().Foreground(theme.HelpText),
		highlight: renderer.NewStyle().Foreground(theme.MatchForeground).Bold(true),
		code:      renderer.NewStyle().Foreground(theme.CodeForeground),
	}
}

// renderRow renders one list line of exactly width cells (or fewer
// when truncation is not needed). Positions are rune indices in the
// question to highlight; they are ignored on the selected row, which
// is drawn in a single style.
func (s styles) renderRow(row Row, positions []int, selected bool, width int) string {
	marker := "  "
	if selected {
		marker = "▸ "
	}
	if selected {
		line := marker + row.Date + "  " + row.Question + "  " + row.Summary
		return s.selected.Render(padRight(ansi.Truncate(line, width, "…"), width))
	}

	var question string
	if len(positions) == 0 {
		question = s.normal.Render(row.Question)
	} else {
		question = highlightRunes(row.Question, positions, s.normal, s.highlight)
	}
	line := marker + s.faint.Render(row.Date) + "  " + question + "  " + s.faint.Render(row.Summary)
	return ansi.Truncate(line, width, "…")
}

// renderDetail renders the full answer breakdown of row.
func (s styles) renderDetail(row Row, width int) string {
	var lines []string

	title := ansi.Truncate(s.renderMarkdown(row.Question, s.bold), width, "…")
	if row.Edited {
		title += s.faint.Render(" (edited)")
	}
	lines = append(lines, title)
	lines = append(lines, s.faint.Render(row.Date+"  "+row.Summary))
	if row.DecryptionError {
		lines = append(lines, s.warning.Render("Some votes could not be decrypted; results may be incomplete"))
	}
	lines = append(lines, "")

	texts := make([]string, len(row.Answers))
	textWidth := 0
	for index, answer := range row.Answers {
		textStyle := s.normal
		switch {
		case answer.Winner:
			textStyle = s.winner
		case answer.Selected:
			textStyle = s.voted
		}
		texts[index] = s.renderMarkdown(answer.Text, textStyle)
		textWidth = max(textWidth, ansi.StringWidth(texts[index]))
	}
	textWidth = min(textWidth, max(width-resultBarWidth-16, 8))

	for index, answer := range row.Answers {
		marker := "  "
		switch {
		case answer.Winner && answer.Selected:
			marker = "✓●"
		case answer.Winner:
			marker = "✓ "
		case answer.Selected:
			marker = "● "
		}
		line := marker + " " + padRight(ansi.Truncate(texts[index], textWidth, "…"), textWidth)
		if !row.ResultsHidden {
			line += "  " + s.resultBar(answer.Percent) +
				s.faint.Render(fmt.Sprintf("  %s (%d%%)", votes(answer.Count), answer.Percent))
		}
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	return strings.Join(lines, "\n")
}

func (s styles) resultBar(percent int) string {
	filled := (percent*resultBarWidth + 50) / 100
	filled = min(max(filled, 0), resultBarWidth)
	return s.bar.Render(strings.Repeat("█", filled)) +
		s.barRest.Render(strings.Repeat("░", resultBarWidth-filled))
}

// highlightRunes renders text with the runes at positions in the
// highlight style and the rest in base.
func highlightRunes(text string, positions []int, base, highlight lipgloss.Style) string {
	marked := make(map[int]bool, len(positions))
	for _, position := range positions {
		marked[position] = true
	}
	var builder strings.Builder
	var run []rune
	runHighlighted := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		if runHighlighted {
			builder.WriteString(highlight.Render(string(run)))
		} else {
			builder.WriteString(base.Render(string(run)))
		}
		run = run[:0]
	}
	for index, character := range []rune(text) {
		if marked[index] != runHighlighted {
			flush()
			runHighlighted = marked[index]
		}
		run = append(run, character)
	}
	flush()
	return builder.String()
}

func padRight(text string, width int) string {
	gap := width - ansi.StringWidth(text)
	if gap <= 0 {
		return text
	}
	return text + strings.Repeat(" ", gap)
}

// PlainOptions configures RenderPlain.
type PlainOptions struct {
	// Renderer determines the colour profile. Nil uses
	// lipgloss.NewRenderer(writer).
	Renderer *lipgloss.Renderer

	Theme Theme

	// Width bounds each line; 0 means 100.
	Width int

	// Details includes each poll's answer breakdown.
	Details bool
}

// RenderPlain writes view as text to writer, for output that is not an
// interactive terminal.
func RenderPlain(writer io.Writer, view View, options PlainOptions) error {
	renderer := options.Renderer
	if renderer == nil {
		renderer = lipgloss.NewRenderer(writer)
	}
	theme := options.Theme
	if theme == (Theme{}) {
		theme = DefaultTheme
	}
	width := options.Width
	if width <= 0 {
		width = 100
	}
	s := newStyles(renderer, theme)

	var builder strings.Builder
	builder.WriteString(s.header.Render(fmt.Sprintf("%s (%d)", view.Title, len(view.Rows))))
	builder.WriteString("\n")
	if view.Error != "" {
		builder.WriteString(s.failure.Render(view.Error))
		builder.WriteString("\n")
	}
	if len(view.Rows) == 0 {
		builder.WriteString(s.faint.Render(view.EmptyText))
		builder.WriteString("\n")
	}
	for _, row := range view.Rows {
		if options.Details {
			builder.WriteString("\n")
			builder.WriteString(s.renderDetail(row, width))
			builder.WriteString("\n")
			continue
		}
		builder.WriteString(s.renderRow(row, nil, false, width))
		builder.WriteString("\n")
	}
	_, err := io.WriteString(writer, builder.String())
	return err
}
