// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/ref"
	"github.com/bureau-foundation/pollhistory/messaging"
)

// maxLineSize bounds one JSONL line.
const maxLineSize = 4 << 20

// FileConfig configures a FileSource.
type FileConfig struct {
	// Path is the file of Matrix events, oldest first: either JSONL,
	// one event per line, or a JSON array such as the chunk of a
	// /messages export, where comments and trailing commas are
	// allowed. Required.
	Path string

	// Viewer is the local user, used for Answer.Selected.
	Viewer ref.UserID

	// PageSize is the number of events per page. Zero uses
	// DefaultPageSize.
	PageSize int

	// Logger is used for structured logging. Nil uses slog.Default().
	Logger *slog.Logger
}

// FileSource is a Source backed by a JSONL export of a room's events.
// History pages are cut from the file as it was when the source was
// opened; lines appended later arrive through the streams.
type FileSource struct {
	path     string
	pageSize int
	logger   *slog.Logger
	events   []messaging.Event

	*assembly

	watchMutex sync.Mutex
	watching   bool
	// consumed is the number of lines, or array elements, already
	// folded (history and stream). Owned by the watch loop once
	// watching.
	consumed int
}

var _ Source = (*FileSource)(nil)

// NewFileSource reads the file and prepares it for paging. Lines that
// are not valid events are logged and skipped.
func NewFileSource(config FileConfig) (*FileSource, error) {
	if config.Path == "" {
		return nil, errors.New("pollsource: FileConfig.Path is required")
	}
	absolutePath, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, err
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("path", absolutePath)

	events, lines, err := readEventFile(absolutePath, logger)
	if err != nil {
		return nil, err
	}
	return &FileSource{
		path:     absolutePath,
		pageSize: pageSize,
		logger:   logger,
		events:   events,
		assembly: newAssembly(config.Viewer, logger),
		consumed: lines,
	}, nil
}

// readEventFile parses an event file. It returns the events and the
// number of units read: lines for JSONL, including skipped ones, or
// array elements.
func readEventFile(path string, logger *slog.Logger) ([]messaging.Event, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading poll event file: %w", err)
	}
	if isEventArray(data) {
		events, err := parseEventArray(data)
		if err != nil {
			return nil, 0, err
		}
		return events, len(events), nil
	}
	return parseEventLines(data, 0, true, logger)
}

// isEventArray reports whether data holds a JSON array rather than
// JSONL. Leading comments are skipped.
func isEventArray(data []byte) bool {
	trimmed := bytes.TrimSpace(jsonc.ToJSON(data))
	return len(trimmed) > 0 && trimmed[0] == '['
}

// parseEventArray parses a JSONC array of events. Unlike JSONL a
// single bad element fails the whole file.
func parseEventArray(data []byte) ([]messaging.Event, error) {
	var events []messaging.Event
	if err := json.Unmarshal(jsonc.ToJSON(data), &events); err != nil {
		return nil, fmt.Errorf("parsing poll event array: %w", err)
	}
	return events, nil
}

// lineCount counts the lines of data. A trailing line without a
// newline counts only when includePartial is set.
func lineCount(data []byte, includePartial bool) int {
	count := bytes.Count(data, []byte{'\n'})
	if includePartial && len(data) > 0 && data[len(data)-1] != '\n' {
		count++
	}
	return count
}

// parseEventLines parses lines of data after skipping the first skip
// lines. Unless includePartial is set, a trailing line without a
// newline is treated as incomplete and not counted, so a writer caught
// mid-line is re-read next time. The initial read of a file includes
// it: exports commonly omit the final newline.
func parseEventLines(data []byte, skip int, includePartial bool, logger *slog.Logger) ([]messaging.Event, int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	complete := lineCount(data, includePartial)
	var events []messaging.Event
	line := 0
	for line < complete && scanner.Scan() {
		line++
		if line <= skip {
			continue
		}
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var event messaging.Event
		if err := json.Unmarshal(text, &event); err != nil {
			logger.Warn("skipping invalid event line", "line", line, "error", err)
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning poll event file: %w", err)
	}
	return events, line, nil
}

// FetchNextBatch returns the next page of events, newest first. The
// cursor is the index one past the newest event of the page.
func (s *FileSource) FetchNextBatch(ctx context.Context, segment poll.Segment, cursor string) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	end := len(s.events)
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 || parsed > len(s.events) {
			return Batch{}, fmt.Errorf("invalid file cursor %q", cursor)
		}
		end = parsed
	}
	start := max(end-s.pageSize, 0)

	page := slices.Clone(s.events[start:end])
	slices.Reverse(page)
	records := s.ingestPage(page)

	batch := Batch{Records: records, HasMore: start > 0}
	if batch.HasMore {
		batch.Cursor = strconv.Itoa(start)
	}
	s.logger.Debug("read poll history page",
		"segment", segment,
		"events", len(page),
		"polls", len(records),
		"has_more", batch.HasMore,
	)
	return batch, nil
}

// Updates streams revisions of known polls from appended lines.
func (s *FileSource) Updates(ctx context.Context) (<-chan poll.Record, error) {
	if err := s.startWatch(ctx); err != nil {
		return nil, err
	}
	return s.updates.subscribe(ctx), nil
}

// LivePolls streams polls started in appended lines.
func (s *FileSource) LivePolls(ctx context.Context) (<-chan poll.Record, error) {
	if err := s.startWatch(ctx); err != nil {
		return nil, err
	}
	return s.live.subscribe(ctx), nil
}

func (s *FileSource) startWatch(ctx context.Context) error {
	s.watchMutex.Lock()
	defer s.watchMutex.Unlock()
	if s.watching {
		return nil
	}
	watcher, err := watchFile(s.path)
	if err != nil {
		return fmt.Errorf("watching poll event file: %w", err)
	}
	s.watching = true
	go func() {
		defer watcher.close()
		watcher.run(ctx, s.reload)
	}()
	return nil
}

// reload folds lines appended since the last read into the streams.
// A file that shrank was replaced: it is re-read from the top and the
// assembler's event ID dedupe drops what was already seen.
func (s *FileSource) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		// Mid-replace; the completing write fires another event.
		s.logger.Debug("poll event file unreadable", "error", err)
		return
	}
	if isEventArray(data) {
		s.reloadArray(data)
		return
	}
	skip := s.consumed
	if lineCount(data, true) < skip {
		skip = 0
	}
	events, lines, err := parseEventLines(data, skip, false, s.logger)
	if err != nil {
		s.logger.Warn("rereading poll event file", "error", err)
		return
	}
	// A final line taken at open has no newline yet; keep it consumed.
	s.consumed = max(lines, skip)
	if len(events) > 0 {
		s.ingestStream(events)
	}
}

// reloadArray is reload for array files, which are rewritten whole.
func (s *FileSource) reloadArray(data []byte) {
	events, err := parseEventArray(data)
	if err != nil {
		// Caught mid-write.
		s.logger.Debug("poll event array unreadable", "error", err)
		return
	}
	skip := s.consumed
	if len(events) < skip {
		skip = 0
	}
	s.consumed = len(events)
	if fresh := events[skip:]; len(fresh) > 0 {
		s.ingestStream(fresh)
	}
}
