package ingestion

import (
	"context"
	"errors"
	"fmt"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/storage"
)

// AppendEvent validates e and appends it to the log.
// Returns (false, nil) for an event whose hash is already logged.
// Malformed events are rejected with storage.ErrInvalidInput.
func AppendEvent(ctx context.Context, events storage.EventLog, e *domain.Event) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	err := events.Append(ctx, e)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		observability.RecordEventDuplicate(e.Venue)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("append %s event %s: %w", e.Venue, e.Hash, err)
	}

	observability.RecordEventAppended(e.Venue, e.EventType.String())
	return true, nil
}
