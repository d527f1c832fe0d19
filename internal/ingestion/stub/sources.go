package stub

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"gift-market-tracker/internal/domain"
)

// StubEventSource serves fixed in-memory events in feed order.
// PageSize > 0 caps the number of events per fetch.
// Implements ingestion.EventSource interface.
type StubEventSource struct {
	venue    string
	PageSize int

	mu     sync.Mutex
	events []*domain.Event
	err    error
	calls  []domain.FeedCursor
}

// NewStubEventSource creates a new stub event source with the given events.
func NewStubEventSource(venue string, events []*domain.Event) *StubEventSource {
	return &StubEventSource{venue: venue, events: events}
}

// Venue returns the venue name.
func (s *StubEventSource) Venue() string { return s.venue }

// Add appends events returned by later fetches.
func (s *StubEventSource) Add(events ...*domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// FailWith makes subsequent fetches return err (nil clears it).
func (s *StubEventSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the cursors of all fetches so far.
func (s *StubEventSource) Calls() []domain.FeedCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.FeedCursor(nil), s.calls...)
}

// FetchEvents returns copies of the events after cursor, in insertion order.
// A capped page is cut in (timestamp, source id) order.
func (s *StubEventSource) FetchEvents(_ context.Context, cursor domain.FeedCursor) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cursor)
	if s.err != nil {
		return nil, s.err
	}

	var result []*domain.Event
	for _, e := range s.events {
		if cursor.Admits(e.Timestamp, e.SourceID) {
			copy := *e
			result = append(result, &copy)
		}
	}
	if s.PageSize > 0 && len(result) > s.PageSize {
		slices.SortFunc(result, func(a, b *domain.Event) int {
			return cmp.Or(cmp.Compare(a.Timestamp, b.Timestamp), cmp.Compare(a.SourceID, b.SourceID))
		})
		result = result[:s.PageSize]
	}
	return result, nil
}

// StubListingWalker enumerates fixed in-memory items for testing.
// If FailAfter is > 0, the walk returns Err after visiting that many items.
// Implements ingestion.ListingWalker interface.
type StubListingWalker struct {
	venue     string
	items     []domain.ListingItem
	FailAfter int
	Err       error
}

// NewStubListingWalker creates a new stub listing walker.
func NewStubListingWalker(venue string, items []domain.ListingItem) *StubListingWalker {
	return &StubListingWalker{venue: venue, items: items}
}

// Venue returns the venue name.
func (w *StubListingWalker) Venue() string { return w.venue }

// Walk visits every item in order.
func (w *StubListingWalker) Walk(ctx context.Context, fn func(domain.ListingItem) error) error {
	for i, item := range w.items {
		if w.FailAfter > 0 && i == w.FailAfter {
			return w.Err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	if w.FailAfter > 0 && w.FailAfter >= len(w.items) {
		return w.Err
	}
	return nil
}
