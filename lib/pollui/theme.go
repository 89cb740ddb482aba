// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette of the poll history views. All
// colors use ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Answer states.
	WinnerForeground   lipgloss.Color
	SelectedAnswer     lipgloss.Color
	ResultBar          lipgloss.Color
	ResultBarRemainder lipgloss.Color

	// Status bar levels.
	WarningForeground lipgloss.Color
	ErrorForeground   lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Filter match highlighting.
	MatchForeground lipgloss.Color

	// Inline code in poll text.
	CodeForeground lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	WinnerForeground:   lipgloss.Color("114"), // green
	SelectedAnswer:     lipgloss.Color("75"),  // blue
	ResultBar:          lipgloss.Color("75"),
	ResultBarRemainder: lipgloss.Color("238"),

	WarningForeground: lipgloss.Color("220"), // amber
	ErrorForeground:   lipgloss.Color("196"), // red

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	MatchForeground: lipgloss.Color("220"),

	CodeForeground: lipgloss.Color("180"), // tan
}
