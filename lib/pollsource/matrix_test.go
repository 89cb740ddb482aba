// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/clock"
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/ref"
	"github.com/bureau-foundation/pollhistory/lib/secret"
	"github.com/bureau-foundation/pollhistory/lib/testutil"
	"github.com/bureau-foundation/pollhistory/messaging"
)

const testRoom = "!polls:local"

// fakeHomeserver serves /messages pages keyed by from-token and hands
// out queued /sync timelines.
type fakeHomeserver struct {
	t *testing.T

	mutex         sync.Mutex
	pages         map[string]map[string]any
	messagesCalls map[string]int
	syncQueue     chan []map[string]any
	syncFailing   bool
}

func newFakeHomeserver(t *testing.T) *fakeHomeserver {
	return &fakeHomeserver{
		t:             t,
		pages:         make(map[string]map[string]any),
		messagesCalls: make(map[string]int),
		syncQueue:     make(chan []map[string]any, 8),
	}
}

func (h *fakeHomeserver) setPage(from, end string, events ...map[string]any) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.pages[from] = map[string]any{"start": from, "end": end, "chunk": events}
}

func (h *fakeHomeserver) calls(from string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.messagesCalls[from]
}

func (h *fakeHomeserver) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(request.URL.Path, "/messages"):
		query := request.URL.Query()
		if query.Get("dir") != "b" {
			h.t.Errorf("dir = %q, want b", query.Get("dir"))
		}
		if !strings.Contains(query.Get("filter"), "m.poll.start") {
			h.t.Errorf("filter %q does not select poll events", query.Get("filter"))
		}
		from := query.Get("from")
		h.mutex.Lock()
		h.messagesCalls[from]++
		page, ok := h.pages[from]
		h.mutex.Unlock()
		if !ok {
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(map[string]string{"errcode": "M_NOT_FOUND", "error": "no such page"})
			return
		}
		json.NewEncoder(writer).Encode(page)

	case request.URL.Path == "/_matrix/client/v3/sync":
		since := request.URL.Query().Get("since")
		if since == "" {
			json.NewEncoder(writer).Encode(map[string]any{"next_batch": "s0"})
			return
		}
		h.mutex.Lock()
		failing := h.syncFailing
		h.mutex.Unlock()
		if failing {
			writer.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(writer).Encode(map[string]string{"errcode": "M_UNKNOWN", "error": "upstream unavailable"})
			return
		}
		select {
		case events := <-h.syncQueue:
			json.NewEncoder(writer).Encode(map[string]any{
				"next_batch": since + "+",
				"rooms": map[string]any{"join": map[string]any{
					testRoom: map[string]any{"timeline": map[string]any{"events": events}},
				}},
			})
		case <-request.Context().Done():
		}

	default:
		h.t.Errorf("unexpected request %s", request.URL.Path)
		writer.WriteHeader(http.StatusNotFound)
	}
}

func newTestMatrixSource(t *testing.T, homeserver *fakeHomeserver, window time.Duration) *MatrixSource {
	t.Helper()
	server := httptest.NewServer(homeserver)
	t.Cleanup(server.Close)

	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	token, err := secret.NewFromBytes([]byte("test-token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	session := client.SessionFromToken(ref.MustParseUserID("@viewer:local"), token)
	t.Cleanup(func() { session.Close() })

	source, err := NewMatrixSource(MatrixConfig{
		Session:       session,
		RoomID:        ref.MustParseRoomID(testRoom),
		PageSize:      10,
		HistoryWindow: window,
		Clock:         clock.Fake(testEpoch.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("NewMatrixSource: %v", err)
	}
	return source
}

func TestMatrixSourcePagesBackwards(t *testing.T) {
	homeserver := newFakeHomeserver(t)
	minute := func(n int) time.Time { return testEpoch.Add(time.Duration(n) * time.Minute) }

	// Page 1 (newest): the end of $old and a vote for it, plus the
	// whole of $new.
	homeserver.setPage("", "t1",
		pollEnd("$end", "@alice:local", "$old", minute(50)),
		pollResponse("$v2", "@viewer:local", "$new", minute(45), "yes"),
		pollStart("$new", "@bob:local", minute(40), "New poll?"),
		pollResponse("$v1", "@carol:local", "$old", minute(20), "no"),
	)
	// Page 2: the start of $old.
	homeserver.setPage("t1", "t2",
		pollStart("$old", "@alice:local", minute(10), "Old poll?"),
	)
	// Page 3: empty, end of history.
	homeserver.setPage("t2", "")

	source := newTestMatrixSource(t, homeserver, -1)
	ctx := context.Background()

	first, err := source.FetchNextBatch(ctx, poll.SegmentActive, "")
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if !first.HasMore || first.Cursor != "t1" {
		t.Fatalf("page 1 = HasMore %v Cursor %q", first.HasMore, first.Cursor)
	}
	if len(first.Records) != 1 || first.Records[0].ID != "$new" {
		t.Fatalf("page 1 records = %+v", first.Records)
	}
	if !first.Records[0].Answers[0].Selected || first.Records[0].TotalAnswerCount != 1 {
		t.Errorf("viewer's vote not reflected: %+v", first.Records[0])
	}

	second, err := source.FetchNextBatch(ctx, poll.SegmentActive, first.Cursor)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(second.Records) != 1 {
		t.Fatalf("page 2 records = %+v", second.Records)
	}
	old := second.Records[0]
	if old.ID != "$old" || !old.Closed || old.TotalAnswerCount != 1 || !old.Answers[1].Winner {
		t.Errorf("orphaned end and vote not applied: %+v", old)
	}

	third, err := source.FetchNextBatch(ctx, poll.SegmentActive, second.Cursor)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if third.HasMore || third.Cursor != "" || len(third.Records) != 0 {
		t.Errorf("page 3 = %+v", third)
	}

	// The past segment walks the same timeline: anchored pages come
	// from the cache and still yield their polls.
	again, err := source.FetchNextBatch(ctx, poll.SegmentPast, "t1")
	if err != nil {
		t.Fatalf("cached page 2: %v", err)
	}
	if len(again.Records) != 1 || again.Records[0].ID != "$old" {
		t.Errorf("cached page 2 records = %+v", again.Records)
	}
	if calls := homeserver.calls("t1"); calls != 1 {
		t.Errorf("page t1 fetched %d times, want 1", calls)
	}
}

func TestMatrixSourceHistoryWindow(t *testing.T) {
	homeserver := newFakeHomeserver(t)
	homeserver.setPage("", "t1",
		pollStart("$recent", "@alice:local", testEpoch, "Recent?"),
		pollStart("$ancient", "@alice:local", testEpoch.Add(-48*time.Hour), "Ancient?"),
	)

	// The fake clock sits one hour after testEpoch; a 24h window ends
	// between the two polls.
	source := newTestMatrixSource(t, homeserver, 24*time.Hour)
	batch, err := source.FetchNextBatch(context.Background(), poll.SegmentActive, "")
	if err != nil {
		t.Fatalf("FetchNextBatch: %v", err)
	}
	if batch.HasMore {
		t.Error("HasMore should be false once a page crosses the history window")
	}
	if len(batch.Records) != 2 {
		t.Errorf("records on the boundary page should still be returned: %+v", batch.Records)
	}
}

func TestMatrixSourceFetchError(t *testing.T) {
	homeserver := newFakeHomeserver(t)
	source := newTestMatrixSource(t, homeserver, -1)
	_, err := source.FetchNextBatch(context.Background(), poll.SegmentActive, "missing")
	if !messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
		t.Fatalf("error = %v, want M_NOT_FOUND", err)
	}
}

func TestMatrixSourceStreams(t *testing.T) {
	homeserver := newFakeHomeserver(t)
	homeserver.setPage("", "", pollStart("$known", "@alice:local", testEpoch, "Known?"))
	source := newTestMatrixSource(t, homeserver, -1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live, err := source.LivePolls(ctx)
	if err != nil {
		t.Fatalf("LivePolls: %v", err)
	}
	updates, err := source.Updates(ctx)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if _, err := source.FetchNextBatch(ctx, poll.SegmentActive, ""); err != nil {
		t.Fatalf("FetchNextBatch: %v", err)
	}

	homeserver.syncQueue <- []map[string]any{
		pollStart("$fresh", "@bob:local", testEpoch.Add(time.Minute), "Fresh?"),
		pollResponse("$vote", "@bob:local", "$known", testEpoch.Add(time.Minute), "yes"),
		pollResponse("$stray", "@bob:local", "$unseen", testEpoch.Add(time.Minute), "yes"),
	}

	fresh := testutil.RequireReceive(t, live, 5*time.Second, "live poll")
	if fresh.ID != "$fresh" || fresh.Question != "Fresh?" {
		t.Errorf("live record = %+v", fresh)
	}
	updated := testutil.RequireReceive(t, updates, 5*time.Second, "poll update")
	if updated.ID != "$known" || updated.Answers[0].Count != 1 {
		t.Errorf("update record = %+v", updated)
	}
	testutil.RequireQuiet(t, updates, 50*time.Millisecond, "vote for an unseen poll must not produce an update")

	cancel()
	testutil.RequireClosed(t, live, 5*time.Second, "live channel after cancel")
	testutil.RequireClosed(t, updates, 5*time.Second, "updates channel after cancel")
}

func TestMatrixSourceStreamGivesUp(t *testing.T) {
	homeserver := newFakeHomeserver(t)
	homeserver.syncFailing = true
	source := newTestMatrixSource(t, homeserver, -1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live, err := source.LivePolls(ctx)
	if err != nil {
		t.Fatalf("LivePolls: %v", err)
	}
	updates, err := source.Updates(ctx)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}

	testutil.RequireClosed(t, live, 10*time.Second, "live channel after the stream gave up")
	testutil.RequireClosed(t, updates, 10*time.Second, "updates channel after the stream gave up")

	if _, err := source.LivePolls(ctx); err == nil {
		t.Error("subscribing after the stream stopped should report its error")
	}
}
