package ingestion

import (
	"cmp"
	"errors"
	"slices"

	"gift-market-tracker/internal/domain"
)

// ErrInvalidOrdering means a log read came back out of (timestamp, id) order
// or overlapped the checkpoint it was read from.
var ErrInvalidOrdering = errors.New("event batch out of order")

// SortFeedEvents puts a venue batch into the venue's feed order: timestamp,
// then venue event id, then hash. Feed events carry no log id yet.
func SortFeedEvents(events []*domain.Event) {
	slices.SortFunc(events, func(a, b *domain.Event) int {
		return cmp.Or(
			cmp.Compare(a.Timestamp, b.Timestamp),
			cmp.Compare(a.SourceID, b.SourceID),
			cmp.Compare(a.Hash, b.Hash),
		)
	})
}

// ValidateEventOrdering rejects a batch that is not strictly increasing by
// position or that contains an event cp would not admit.
func ValidateEventOrdering(cp domain.Checkpoint, events []*domain.Event) error {
	var prev *domain.Event
	for _, e := range events {
		if !cp.Admits(e.Position()) {
			return ErrInvalidOrdering
		}
		if prev != nil && prev.Position().Compare(e.Position()) >= 0 {
			return ErrInvalidOrdering
		}
		prev = e
	}
	return nil
}
