// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/clock"
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/ref"
	"github.com/bureau-foundation/pollhistory/messaging"
)

const (
	// DefaultPageSize is the /messages limit per history page.
	DefaultPageSize = 50

	// DefaultHistoryWindow bounds how far back history is paged.
	DefaultHistoryWindow = 30 * 24 * time.Hour
)

// MatrixConfig configures a MatrixSource.
type MatrixConfig struct {
	// Session is the authenticated Matrix session. Required.
	Session messaging.Session

	// RoomID is the room whose polls are shown. Required.
	RoomID ref.RoomID

	// PageSize is the /messages limit. Zero uses DefaultPageSize.
	PageSize int

	// HistoryWindow stops pagination once a page reaches events older
	// than now minus the window. Zero uses DefaultHistoryWindow; a
	// negative value disables the bound.
	HistoryWindow time.Duration

	// Clock supplies "now" for the history window. Nil uses the real
	// clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil uses slog.Default().
	Logger *slog.Logger
}

// MatrixSource is a Source backed by a Matrix room.
type MatrixSource struct {
	session  messaging.Session
	roomID   ref.RoomID
	pageSize int
	window   time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	filter   string

	*assembly

	// pages caches /messages responses by from-token. Each segment
	// keeps its own cursor, so both walk the same timeline and the
	// second walk is served from here.
	pagesMutex sync.Mutex
	pages      map[string]*messaging.RoomMessagesResponse

	watchMutex sync.Mutex
	watching   bool
	watchErr   error
}

var _ Source = (*MatrixSource)(nil)

// NewMatrixSource creates a MatrixSource. No requests are made until
// the first fetch or subscription.
func NewMatrixSource(config MatrixConfig) (*MatrixSource, error) {
	if config.Session == nil {
		return nil, errors.New("pollsource: MatrixConfig.Session is required")
	}
	if config.RoomID.IsZero() {
		return nil, errors.New("pollsource: MatrixConfig.RoomID is required")
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	window := config.HistoryWindow
	if window == 0 {
		window = DefaultHistoryWindow
	}
	sourceClock := config.Clock
	if sourceClock == nil {
		sourceClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("room_id", config.RoomID)

	return &MatrixSource{
		session:  config.Session,
		roomID:   config.RoomID,
		pageSize: pageSize,
		window:   window,
		clock:    sourceClock,
		logger:   logger,
		filter:   messaging.BuildRoomEventFilter(poll.TimelineTypes),
		assembly: newAssembly(config.Session.UserID(), logger),
		pages:    make(map[string]*messaging.RoomMessagesResponse),
	}, nil
}

// FetchNextBatch fetches one page of room history older than cursor.
func (s *MatrixSource) FetchNextBatch(ctx context.Context, segment poll.Segment, cursor string) (Batch, error) {
	response, err := s.page(ctx, cursor)
	if err != nil {
		return Batch{}, err
	}

	records := s.ingestPage(response.Chunk)
	batch := Batch{
		Records: records,
		HasMore: response.End != "" && len(response.Chunk) > 0,
		Cursor:  response.End,
	}
	if batch.HasMore && s.window > 0 {
		oldest := response.Chunk[len(response.Chunk)-1].Timestamp()
		if oldest.Before(s.clock.Now().Add(-s.window)) {
			batch.HasMore = false
		}
	}
	if !batch.HasMore {
		batch.Cursor = ""
	}

	s.logger.Debug("fetched poll history page",
		"segment", segment,
		"events", len(response.Chunk),
		"polls", len(records),
		"has_more", batch.HasMore,
	)
	return batch, nil
}

func (s *MatrixSource) page(ctx context.Context, cursor string) (*messaging.RoomMessagesResponse, error) {
	s.pagesMutex.Lock()
	cached, ok := s.pages[cursor]
	s.pagesMutex.Unlock()
	if ok {
		return cached, nil
	}

	response, err := s.session.RoomMessages(ctx, s.roomID, messaging.RoomMessagesOptions{
		From:      cursor,
		Direction: "b",
		Limit:     s.pageSize,
		Filter:    s.filter,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching poll history for %s: %w", s.roomID, err)
	}

	// The newest page moves as the room grows; only anchored pages are
	// stable enough to reuse.
	if cursor != "" {
		s.pagesMutex.Lock()
		s.pages[cursor] = response
		s.pagesMutex.Unlock()
	}
	return response, nil
}

// Updates streams revisions of polls this source has seen.
func (s *MatrixSource) Updates(ctx context.Context) (<-chan poll.Record, error) {
	if err := s.startWatch(ctx); err != nil {
		return nil, err
	}
	return s.updates.subscribe(ctx), nil
}

// LivePolls streams polls started after the first subscription.
func (s *MatrixSource) LivePolls(ctx context.Context) (<-chan poll.Record, error) {
	if err := s.startWatch(ctx); err != nil {
		return nil, err
	}
	return s.live.subscribe(ctx), nil
}

// startWatch anchors a /sync stream for the room and starts the watch
// loop. The loop runs under the context of the first subscription.
func (s *MatrixSource) startWatch(ctx context.Context) error {
	s.watchMutex.Lock()
	defer s.watchMutex.Unlock()
	if s.watching {
		return s.watchErr
	}

	stream, err := messaging.OpenRoomStream(ctx, s.session, s.roomID, &messaging.SyncFilter{
		TimelineTypes: poll.TimelineTypes,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("opening poll stream for %s: %w", s.roomID, err)
	}
	s.watching = true
	go s.watchLoop(ctx, stream)
	return nil
}

func (s *MatrixSource) watchLoop(ctx context.Context, stream *messaging.RoomStream) {
	for {
		events, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("poll stream stopped, live updates are no longer received", "error", err)
				s.watchMutex.Lock()
				s.watchErr = err
				s.watchMutex.Unlock()
				// Subscribers see their channels close instead of
				// waiting on a stream that will never deliver.
				s.updates.shutdown()
				s.live.shutdown()
			}
			return
		}
		s.ingestStream(events)
	}
}
