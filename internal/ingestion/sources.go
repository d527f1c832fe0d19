// Package ingestion moves marketplace events into the event log and from the log into the projection.
package ingestion

import (
	"context"

	"gift-market-tracker/internal/domain"
)

// EventSource provides normalized events from a venue's activity feed.
type EventSource interface {
	// Venue returns the venue name stamped on every event.
	Venue() string

	// FetchEvents returns one page of events after cursor, in the venue's
	// (timestamp, event id) order. Each event must carry its venue id in
	// SourceID and a globally unique Hash derived from it.
	// Events may be unordered; the live feed sorts them.
	FetchEvents(ctx context.Context, cursor domain.FeedCursor) ([]*domain.Event, error)
}

// ListingWalker enumerates every item currently listed on a venue.
type ListingWalker interface {
	// Venue returns the venue name.
	Venue() string

	// Walk calls fn for each listed item, page by page, until the enumeration ends.
	// Walk returns nil only if every page was fetched and fn returned nil for every item.
	// The same item may be visited more than once if pages overlap.
	Walk(ctx context.Context, fn func(domain.ListingItem) error) error
}

// EventApplier applies one event to the projection.
type EventApplier interface {
	Apply(ctx context.Context, e *domain.Event) error
}
