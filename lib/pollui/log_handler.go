// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// statusMsg delivers a log record to the model for the status bar.
type statusMsg struct {
	Text  string
	Level slog.Level
}

// statusFadeMsg clears a status message once it has been visible for
// statusFadeDelay. Sequence identifies the message it fades so a newer
// message is not cleared early.
type statusFadeMsg struct {
	Sequence uint64
}

// statusFadeDelay is how long a log message stays in the status bar.
const statusFadeDelay = 5 * time.Second

// Sender is the part of *tea.Program the log handler needs.
type Sender interface {
	Send(message tea.Msg)
}

// LogHandler is a slog.Handler that shows records in the TUI status
// bar. Records below the configured level are dropped, as are records
// that arrive before SetProgram.
//
// Handlers derived via WithAttrs/WithGroup share the program pointer,
// so one SetProgram call reaches all of them.
type LogHandler struct {
	level   slog.Leveler
	program *atomic.Pointer[Sender]
	prefix  string
	attrs   []string
}

// NewLogHandler creates a handler for records at or above level.
func NewLogHandler(level slog.Leveler) *LogHandler {
	return &LogHandler{
		level:   level,
		program: &atomic.Pointer[Sender]{},
	}
}

// SetProgram sets the receiver of status messages. Safe to call from
// any goroutine.
func (handler *LogHandler) SetProgram(program Sender) {
	handler.program.Store(&program)
}

// Enabled implements slog.Handler.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level.Level()
}

// Handle implements slog.Handler. The status line reads
// "message (key=value, ...)".
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}

	parts := append([]string(nil), handler.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		parts = appendAttr(parts, handler.prefix, attr)
		return true
	})

	var text strings.Builder
	text.WriteString(record.Message)
	if len(parts) > 0 {
		text.WriteString(" (")
		text.WriteString(strings.Join(parts, ", "))
		text.WriteString(")")
	}

	(*program).Send(statusMsg{Text: text.String(), Level: record.Level})
	return nil
}

// WithAttrs implements slog.Handler.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = append([]string(nil), handler.attrs...)
	for _, attr := range attrs {
		derived.attrs = appendAttr(derived.attrs, handler.prefix, attr)
	}
	return &derived
}

// WithGroup implements slog.Handler.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	derived := *handler
	derived.attrs = append([]string(nil), handler.attrs...)
	derived.prefix = handler.prefix + name + "."
	return &derived
}

func appendAttr(parts []string, prefix string, attr slog.Attr) []string {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return parts
	}
	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			parts = appendAttr(parts, groupPrefix, member)
		}
		return parts
	}
	return append(parts, prefix+attr.Key+"="+attr.Value.String())
}
