package wsfeed

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/idhash"
	"gift-market-tracker/internal/storage"
	"gift-market-tracker/internal/storage/memory"
	"gift-market-tracker/internal/venue"
)

var quiet = log.New(io.Discard, "", 0)

func testConfig() *Config {
	return &Config{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
	}
}

// pushServer sends frames on every connection, then either drops it or holds it open.
func pushServer(t *testing.T, frames []interface{}, drop bool, conns *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conns.Add(1)

		for _, frame := range frames {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
		if drop {
			return
		}
		// Hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestFeed_AppendsPushedEvents(t *testing.T) {
	var conns atomic.Int32
	server := pushServer(t, []interface{}{
		venue.EventsPage{Events: []venue.RawEvent{
			{ID: "1", Type: "LIST", Timestamp: 100, ItemAddress: "A"},
			{ID: "2", Type: "bogus", Timestamp: 101, ItemAddress: "B"},
		}},
		"not an events page",
		venue.EventsPage{Events: []venue.RawEvent{
			{ID: "1", Type: "LIST", Timestamp: 100, ItemAddress: "A"},
			{ID: "3", Type: "sold", Timestamp: 102, ItemAddress: "A"},
		}},
	}, false, &conns)
	defer server.Close()

	eventLog := memory.NewEventLog()
	feed := NewFeed("portals", wsURL(server), eventLog, testConfig(), quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool { return eventLog.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	stats := feed.Stats()
	assert.True(t, stats.Connected)
	assert.Equal(t, int64(4), stats.Received)
	assert.Equal(t, int64(2), stats.Appended)

	exists, err := eventLog.ExistsByHash(context.Background(), idhash.ComputeVenueEventHash("portals", "3"))
	require.NoError(t, err)
	assert.True(t, exists)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
	assert.False(t, feed.Stats().Connected)
}

func TestFeed_ReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	server := pushServer(t, []interface{}{
		venue.EventsPage{Events: []venue.RawEvent{
			{ID: "1", Type: "LIST", Timestamp: 100, ItemAddress: "A"},
		}},
	}, true, &conns)
	defer server.Close()

	eventLog := memory.NewEventLog()
	feed := NewFeed("portals", wsURL(server), eventLog, testConfig(), quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	require.Eventually(t, func() bool { return conns.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, feed.Stats().Reconnects, int64(2))

	// The replayed event is deduplicated by hash
	assert.Equal(t, 1, eventLog.Len())

	events, err := eventLog.FetchAfter(context.Background(), storage.EventFilter{Venue: "portals"}, domain.NewCheckpoint("c"), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeList, events[0].EventType)
}

type failingDeadlineConn struct {
	reads int
}

func (c *failingDeadlineConn) SetReadDeadline(time.Time) error {
	return errors.New("use of closed network connection")
}

func (c *failingDeadlineConn) ReadMessage() (int, []byte, error) {
	c.reads++
	return websocket.TextMessage, []byte("{}"), nil
}

func TestReadFrame_DeadlineErrorEndsSession(t *testing.T) {
	conn := &failingDeadlineConn{}

	_, err := readFrame(conn, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set read deadline")
	assert.Zero(t, conn.reads, "must not read without a deadline")
}
