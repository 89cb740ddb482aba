// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the poll history TUI.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Segment tabs.
	TabActive key.Binding
	TabPast   key.Binding
	TabToggle key.Binding

	// Open the selected poll's details; Back closes them.
	Open key.Binding
	Back key.Binding

	// LoadMore asks for older history.
	LoadMore key.Binding

	FilterActivate key.Binding
	FilterClear    key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set. Vim-style navigation
// (j/k) alongside standard arrow keys and page up/down.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	TabActive: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "active"),
	),
	TabPast: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "past"),
	),
	TabToggle: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "switch segment"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "details"),
	),
	Back: key.NewBinding(
		key.WithKeys("backspace", "h", "left"),
		key.WithHelp("BS", "back"),
	),
	LoadMore: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "load more"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "clear filter"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Quit, keys.Down, keys.TabToggle, keys.Open, keys.FilterActivate, keys.LoadMore, keys.Help}
}

// FullHelp implements help.KeyMap.
func (keys KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{keys.Up, keys.Down, keys.PageUp, keys.PageDown, keys.Home, keys.End},
		{keys.TabActive, keys.TabPast, keys.TabToggle, keys.LoadMore},
		{keys.Open, keys.Back, keys.FilterActivate, keys.FilterClear},
		{keys.Help, keys.Quit},
	}
}
