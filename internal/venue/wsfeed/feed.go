// Package wsfeed receives pushed venue events over a websocket and appends them to the event log.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gift-market-tracker/internal/ingestion"
	"gift-market-tracker/internal/storage"
	"gift-market-tracker/internal/venue"
)

// Config configures websocket feed behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
}

// DefaultConfig returns default websocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Stats is a point-in-time view of a feed.
type Stats struct {
	Connected  bool  `json:"connected"`
	Received   int64 `json:"received"`
	Appended   int64 `json:"appended"`
	Reconnects int64 `json:"reconnects"`
}

// Feed keeps a websocket subscription to a venue gateway open and appends
// every pushed event to the event log. Frames carry a venue.EventsPage.
// Pushed events are not checkpointed: anything missed while disconnected
// is recovered by the polling live feed or the next snapshot.
type Feed struct {
	venue    string
	endpoint string
	events   storage.EventLog
	config   Config
	logger   *log.Logger

	connected  atomic.Bool
	received   atomic.Int64
	appended   atomic.Int64
	reconnects atomic.Int64
}

// NewFeed creates a feed for venue that connects to endpoint.
func NewFeed(venueName, endpoint string, events storage.EventLog, config *Config, logger *log.Logger) *Feed {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Feed{
		venue:    venueName,
		endpoint: endpoint,
		events:   events,
		config:   cfg,
		logger:   logger,
	}
}

// Venue returns the venue name.
func (f *Feed) Venue() string {
	return f.venue
}

// Stats returns current counters.
func (f *Feed) Stats() Stats {
	return Stats{
		Connected:  f.connected.Load(),
		Received:   f.received.Load(),
		Appended:   f.appended.Load(),
		Reconnects: f.reconnects.Load(),
	}
}

// Run connects and consumes frames until ctx is cancelled, reconnecting
// with exponential backoff after any connection error.
func (f *Feed) Run(ctx context.Context) error {
	delay := f.config.ReconnectDelay

	for {
		received, err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Reset delay after a session that delivered data
		if received > 0 {
			delay = f.config.ReconnectDelay
		}
		f.logger.Printf("%s ws: disconnected: %v; reconnecting in %s", f.venue, err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		f.reconnects.Add(1)

		delay *= 2
		if delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}
	}
}

// session runs one connection until it fails. Returns the number of frames read.
func (f *Feed) session(ctx context.Context) (int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	f.connected.Store(true)
	defer f.connected.Store(false)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go f.keepAlive(ctx, conn, done)

	frames := 0
	for {
		message, err := readFrame(conn, f.config.ReadTimeout)
		if err != nil {
			return frames, err
		}
		frames++

		if err := f.handleMessage(ctx, message); err != nil {
			return frames, err
		}
	}
}

// frameReader is the read side of a websocket connection.
type frameReader interface {
	SetReadDeadline(t time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
}

// readFrame reads one message, failing if it does not arrive within timeout.
func readFrame(conn frameReader, timeout time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return message, nil
}

// keepAlive sends pings and closes conn when ctx is cancelled.
func (f *Feed) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			err := conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(f.config.WriteTimeout))
			if err != nil {
				f.logger.Printf("%s ws: close handshake: %v", f.venue, err)
			}
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(f.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.logger.Printf("%s ws: ping failed: %v", f.venue, err)
				return
			}
		}
	}
}

// handleMessage appends the events of one frame.
// Undecodable frames and events are logged and skipped; store failures end the session.
func (f *Feed) handleMessage(ctx context.Context, message []byte) error {
	var page venue.EventsPage
	if err := json.Unmarshal(message, &page); err != nil {
		f.logger.Printf("%s ws: undecodable frame: %v", f.venue, err)
		return nil
	}

	for _, raw := range page.Events {
		f.received.Add(1)

		e, err := venue.Normalize(f.venue, raw)
		if err != nil {
			f.logger.Printf("%s ws: skipping event: %v", f.venue, err)
			continue
		}

		ok, err := ingestion.AppendEvent(ctx, f.events, e)
		if errors.Is(err, storage.ErrInvalidInput) {
			f.logger.Printf("%s ws: dropping malformed event: %v", f.venue, err)
			continue
		}
		if err != nil {
			return err
		}
		if ok {
			f.appended.Add(1)
		}
	}
	return nil
}
