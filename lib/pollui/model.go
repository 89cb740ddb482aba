// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollhistory"
)

// Host is the poll history the model displays. *pollhistory.Runner
// implements it.
type Host interface {
	Dispatcher
	Snapshot() pollhistory.Snapshot
	Snapshots() <-chan pollhistory.Snapshot
	Completions() <-chan pollhistory.Completion
}

// FocusRegion identifies which part of the UI receives keys.
type FocusRegion int

const (
	FocusList FocusRegion = iota
	FocusDetail
	FocusFilter
)

type snapshotMsg struct {
	snapshot pollhistory.Snapshot
}

type completionMsg struct {
	completion pollhistory.Completion
}

// hostClosedMsg reports that the host's snapshot stream ended.
type hostClosedMsg struct{}

// Model is the bubbletea model of the poll history screen: a tab per
// segment, a list of polls, and a detail view of the selected poll.
type Model struct {
	host     Host
	adapter  *Adapter
	location *time.Location

	theme  Theme
	styles styles
	keys   KeyMap
	help   help.Model
	spin   spinner.Model

	width  int
	height int
	ready  bool

	focus  FocusRegion
	filter FilterModel

	view    View
	results []FilterResult

	cursor       int
	scrollOffset int
	selectedID   string // Stable focus: the cursor follows this poll.

	// detail is the poll shown in the detail view; nil when closed.
	detail *Row

	status         string
	statusLevel    slog.Level
	statusSequence uint64

	hostClosed bool
}

// NewModel creates a model for host. Dates render in location; nil
// means time.Local.
func NewModel(host Host, location *time.Location) Model {
	if location == nil {
		location = time.Local
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	model := Model{
		host:     host,
		adapter:  NewAdapter(host, location),
		location: location,
		theme:    DefaultTheme,
		styles:   newStyles(lipgloss.DefaultRenderer(), DefaultTheme),
		keys:     DefaultKeyMap,
		help:     help.New(),
		spin:     spin,
	}
	model.view = model.adapter.View()
	model.applySnapshot(host.Snapshot())
	return model
}

// Init implements tea.Model: it reports the screen as visible and
// starts listening to the host.
func (model Model) Init() tea.Cmd {
	return tea.Batch(
		model.dispatch(model.adapter.Appeared),
		listenForSnapshot(model.host.Snapshots()),
		listenForCompletion(model.host.Completions()),
		model.spin.Tick,
	)
}

func listenForSnapshot(channel <-chan pollhistory.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snapshot, ok := <-channel
		if !ok {
			return hostClosedMsg{}
		}
		return snapshotMsg{snapshot: snapshot}
	}
}

func listenForCompletion(channel <-chan pollhistory.Completion) tea.Cmd {
	return func() tea.Msg {
		completion, ok := <-channel
		if !ok {
			return nil
		}
		return completionMsg{completion: completion}
	}
}

// dispatch runs send off the update goroutine; the host may block
// briefly when its queue is full.
func (model Model) dispatch(send func() bool) tea.Cmd {
	return func() tea.Msg {
		send()
		return nil
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch model.focus {
		case FocusFilter:
			return model.handleFilterKeys(message)
		case FocusDetail:
			return model.handleDetailKeys(message)
		}
		return model.handleListKeys(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.help.Width = message.Width
		model.ready = true
		model.ensureCursorVisible()

	case snapshotMsg:
		model.applySnapshot(message.snapshot)
		return model, listenForSnapshot(model.host.Snapshots())

	case hostClosedMsg:
		model.hostClosed = true

	case completionMsg:
		model.handleCompletion(message.completion)
		return model, listenForCompletion(model.host.Completions())

	case statusMsg:
		model.statusSequence++
		model.status = message.Text
		model.statusLevel = message.Level
		sequence := model.statusSequence
		return model, tea.Tick(statusFadeDelay, func(time.Time) tea.Msg {
			return statusFadeMsg{Sequence: sequence}
		})

	case statusFadeMsg:
		if message.Sequence == model.statusSequence {
			model.status = ""
		}

	case spinner.TickMsg:
		var command tea.Cmd
		model.spin, command = model.spin.Update(message)
		return model, command
	}
	return model, nil
}

func (model *Model) applySnapshot(snapshot pollhistory.Snapshot) {
	view, changed := model.adapter.Apply(snapshot)
	if !changed {
		return
	}
	if view.Segment != model.view.Segment {
		model.selectedID = ""
		model.cursor = 0
		model.scrollOffset = 0
	}
	model.view = view
	model.refreshRows()
}

func (model *Model) handleCompletion(completion pollhistory.Completion) {
	switch completion.Kind {
	case pollhistory.CompletionGenericError:
		model.view = model.adapter.Fail(completion.Err)
	case pollhistory.CompletionSelected:
		row := NewRow(completion.Record, model.location)
		model.detail = &row
		model.focus = FocusDetail
	}
}

// refreshRows reapplies the filter to the current view and keeps the
// cursor on the selected poll when it is still visible.
func (model *Model) refreshRows() {
	model.results = model.filter.Apply(model.view.Rows)

	if model.detail != nil {
		for _, row := range model.view.Rows {
			if row.ID == model.detail.ID {
				updated := row
				model.detail = &updated
				break
			}
		}
	}

	if model.filter.Input != "" {
		model.cursor = 0
		model.scrollOffset = 0
	} else if model.selectedID != "" {
		for index, result := range model.results {
			if result.Row.ID == model.selectedID {
				model.cursor = index
				break
			}
		}
	}
	model.cursor = min(model.cursor, max(len(model.results)-1, 0))
	if model.cursor < len(model.results) {
		model.selectedID = model.results[model.cursor].Row.ID
	}
	model.ensureCursorVisible()
}

func (model Model) handleListKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.TabActive):
		return model, model.switchSegment(poll.SegmentActive)

	case key.Matches(message, model.keys.TabPast):
		return model, model.switchSegment(poll.SegmentPast)

	case key.Matches(message, model.keys.TabToggle):
		next := poll.SegmentPast
		if model.view.Segment == poll.SegmentPast {
			next = poll.SegmentActive
		}
		return model, model.switchSegment(next)

	case key.Matches(message, model.keys.LoadMore):
		return model, model.dispatch(model.adapter.Appeared)

	case key.Matches(message, model.keys.Open):
		if model.cursor < len(model.results) {
			id := model.results[model.cursor].Row.ID
			return model, model.dispatch(func() bool { return model.adapter.SelectID(id) })
		}

	case key.Matches(message, model.keys.FilterActivate):
		model.focus = FocusFilter
		model.filter.Active = true
		model.cursor = 0
		model.scrollOffset = 0

	case key.Matches(message, model.keys.FilterClear):
		if model.filter.Input != "" {
			model.filter.Clear()
			model.refreshRows()
		}

	case key.Matches(message, model.keys.Help):
		model.help.ShowAll = !model.help.ShowAll
		model.ensureCursorVisible()

	case key.Matches(message, model.keys.Up):
		model.moveCursor(-1)
	case key.Matches(message, model.keys.Down):
		model.moveCursor(1)
	case key.Matches(message, model.keys.PageUp):
		model.moveCursor(-model.visibleHeight() / 2)
	case key.Matches(message, model.keys.PageDown):
		model.moveCursor(model.visibleHeight() / 2)
	case key.Matches(message, model.keys.Home):
		model.moveCursor(-len(model.results))
	case key.Matches(message, model.keys.End):
		model.moveCursor(len(model.results))
	}
	return model, nil
}

func (model Model) handleDetailKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.Back), key.Matches(message, model.keys.FilterClear):
		model.detail = nil
		model.focus = FocusList
	case key.Matches(message, model.keys.Help):
		model.help.ShowAll = !model.help.ShowAll
	}
	return model, nil
}

func (model Model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case message.Type == tea.KeyCtrlC:
		return model, tea.Quit

	case key.Matches(message, model.keys.FilterClear):
		if model.filter.Input != "" {
			model.filter.Clear()
			model.filter.Active = true
		} else {
			model.filter.Active = false
			model.focus = FocusList
		}
		model.refreshRows()

	case message.Type == tea.KeyEnter:
		model.filter.Active = false
		model.focus = FocusList

	case message.Type == tea.KeyBackspace:
		if model.filter.HandleBackspace() {
			model.refreshRows()
		}

	case message.Type == tea.KeyRunes || message.Type == tea.KeySpace:
		for _, character := range message.Runes {
			model.filter.HandleRune(character)
		}
		if message.Type == tea.KeySpace && len(message.Runes) == 0 {
			model.filter.HandleRune(' ')
		}
		model.refreshRows()
	}
	return model, nil
}

func (model *Model) switchSegment(segment poll.Segment) tea.Cmd {
	if segment == model.view.Segment {
		return nil
	}
	return model.dispatch(func() bool { return model.adapter.ChangeSegment(segment) })
}

func (model *Model) moveCursor(delta int) {
	if len(model.results) == 0 {
		return
	}
	model.cursor = min(max(model.cursor+delta, 0), len(model.results)-1)
	model.selectedID = model.results[model.cursor].Row.ID
	model.ensureCursorVisible()
}

// visibleHeight is the number of list rows that fit between the
// header and the footer.
func (model Model) visibleHeight() int {
	footer := 2
	if model.help.ShowAll {
		footer = 1 + len(model.keys.FullHelp()[0])
	}
	return max(model.height-1-footer, 1)
}

func (model *Model) ensureCursorVisible() {
	height := model.visibleHeight()
	if model.cursor < model.scrollOffset {
		model.scrollOffset = model.cursor
	}
	if model.cursor >= model.scrollOffset+height {
		model.scrollOffset = model.cursor - height + 1
	}
	model.scrollOffset = max(model.scrollOffset, 0)
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	var sections []string
	if filterView := model.filter.View(model.theme, model.width); filterView != "" {
		sections = append(sections, filterView)
	} else {
		sections = append(sections, model.renderHeader())
	}

	body := lipgloss.NewStyle().
		Width(model.width).
		Height(model.visibleHeight()).
		MaxHeight(model.visibleHeight())
	switch {
	case model.detail != nil:
		sections = append(sections, body.Render(model.styles.renderDetail(*model.detail, model.width)))
	case len(model.results) == 0:
		sections = append(sections, model.renderEmpty())
	default:
		sections = append(sections, body.Render(model.renderList()))
	}

	sections = append(sections, model.styles.border.Render(strings.Repeat("─", model.width)))
	sections = append(sections, model.renderFooter())
	return strings.Join(sections, "\n")
}

// segmentTabs is the fixed order of tabs in the header.
var segmentTabs = []struct {
	label   string
	segment poll.Segment
}{
	{"1:" + SegmentTitle(poll.SegmentActive), poll.SegmentActive},
	{"2:" + SegmentTitle(poll.SegmentPast), poll.SegmentPast},
}

// renderHeader renders the tab bar embedded in a horizontal rule with
// the poll count on the right.
//
// Example: ─── 1:Active polls ─── 2:Past polls ────────── 10 shown ─
func (model Model) renderHeader() string {
	sep := model.styles.border.Render("─")
	left := strings.Repeat(sep, 3)
	used := 3
	for _, tab := range segmentTabs {
		style := model.styles.faint
		if tab.segment == model.view.Segment {
			style = model.styles.header
		}
		left += " " + style.Render(tab.label) + " " + strings.Repeat(sep, 3)
		used += 2 + lipgloss.Width(tab.label) + 3
	}

	stats := fmt.Sprintf("%d shown", len(model.results))
	if model.view.Loading {
		stats = model.spin.View() + " loading  " + stats
	} else if model.view.HasMore {
		stats = "more available  " + stats
	}
	right := " " + model.styles.faint.Render(stats) + " " + sep
	fill := max(model.width-used-lipgloss.Width(stats)-3, 1)
	return left + strings.Repeat(sep, fill) + right
}

func (model Model) renderList() string {
	height := model.visibleHeight()
	end := min(model.scrollOffset+height, len(model.results))
	lines := make([]string, 0, end-model.scrollOffset)
	for index := model.scrollOffset; index < end; index++ {
		result := model.results[index]
		lines = append(lines, model.styles.renderRow(result.Row, result.Positions, index == model.cursor, model.width))
	}
	return strings.Join(lines, "\n")
}

func (model Model) renderEmpty() string {
	text := model.view.EmptyText
	if model.filter.Input != "" && len(model.view.Rows) > 0 {
		text = "No polls match the filter"
	}
	if model.view.Loading {
		text = model.spin.View() + " " + text
	}
	return lipgloss.Place(
		model.width, model.visibleHeight(),
		lipgloss.Center, lipgloss.Center,
		model.styles.faint.Render(text),
	)
}

// renderFooter shows, in order of precedence, a recent log message,
// the fetch error, or the key help.
func (model Model) renderFooter() string {
	switch {
	case model.status != "":
		style := model.styles.warning
		if model.statusLevel >= slog.LevelError {
			style = model.styles.failure
		}
		return style.Render(" " + model.status)
	case model.view.Error != "":
		return model.styles.failure.Render(" " + model.view.Error)
	case model.hostClosed:
		return model.styles.faint.Render(" poll history stopped; q to quit")
	}
	return model.help.View(model.keys)
}
