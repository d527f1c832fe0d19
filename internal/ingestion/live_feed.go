package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/storage"
)

// LiveFeedCursorSuffix is appended to the venue name to form the live feed's checkpoint key.
const LiveFeedCursorSuffix = ":live-feed"

// LiveFeed copies a venue's activity feed into the event log.
// Its cursor is the (timestamp, venue event id) of the last event handled,
// so a page full of events sharing one timestamp is paged past rather than
// refetched. Hash dedup drops anything the venue serves twice.
type LiveFeed struct {
	source      EventSource
	events      storage.EventLog
	checkpoints storage.CheckpointStore
	since       int64
	logger      *log.Logger
}

// LiveFeedOptions contains configuration for creating a LiveFeed.
type LiveFeedOptions struct {
	Source      EventSource
	Events      storage.EventLog
	Checkpoints storage.CheckpointStore
	Since       int64 // cursor used when none is persisted (ms)
	Logger      *log.Logger
}

// NewLiveFeed creates a new LiveFeed.
func NewLiveFeed(opts LiveFeedOptions) *LiveFeed {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &LiveFeed{
		source:      opts.Source,
		events:      opts.Events,
		checkpoints: opts.Checkpoints,
		since:       opts.Since,
		logger:      logger,
	}
}

// CursorID returns the checkpoint key of the feed cursor.
func (f *LiveFeed) CursorID() string {
	return f.source.Venue() + LiveFeedCursorSuffix
}

// Poll fetches one page after the cursor and appends its events.
// On a store failure the cursor is saved up to the last appended event and the error returned.
func (f *LiveFeed) Poll(ctx context.Context) (int, error) {
	venue := f.source.Venue()

	cursor, err := f.loadCursor(ctx)
	if err != nil {
		return 0, err
	}

	from := domain.FeedCursor{Since: cursor.LastTimestamp, AfterID: cursor.LastKey}
	batch, err := f.source.FetchEvents(ctx, from)
	if err != nil {
		observability.RecordFeedFetchError(venue)
		return 0, fmt.Errorf("fetch %s events after (%d, %q): %w", venue, from.Since, from.AfterID, err)
	}
	SortFeedEvents(batch)

	appended := 0
	next := from
	var appendErr error
	for _, e := range batch {
		if e.Venue == "" {
			e.Venue = venue
		}
		ok, err := AppendEvent(ctx, f.events, e)
		if err != nil && !errors.Is(err, storage.ErrInvalidInput) {
			appendErr = err
			break
		}
		if err != nil {
			f.logger.Printf("%s feed: dropping malformed event: %v", venue, err)
		} else if ok {
			appended++
		}
		if next.Admits(e.Timestamp, e.SourceID) {
			next = domain.FeedCursor{Since: e.Timestamp, AfterID: e.SourceID}
		}
	}

	if next != from {
		cursor.LastTimestamp = next.Since
		cursor.LastKey = next.AfterID
		if err := f.checkpoints.Save(ctx, &cursor); err != nil {
			return appended, errors.Join(appendErr, fmt.Errorf("save %s feed cursor: %w", venue, err))
		}
		observability.UpdateFeedCursor(venue, next.Since)
	}

	if appended > 0 {
		f.logger.Printf("%s feed: appended %d of %d events, cursor (%d, %q)",
			venue, appended, len(batch), next.Since, next.AfterID)
	}
	return appended, appendErr
}

func (f *LiveFeed) loadCursor(ctx context.Context) (domain.Checkpoint, error) {
	cp, err := f.checkpoints.Get(ctx, f.CursorID())
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Checkpoint{ConsumerID: f.CursorID(), LastTimestamp: f.since}, nil
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load feed cursor %s: %w", f.CursorID(), err)
	}
	return *cp, nil
}
