package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// EventLog implements storage.EventLog using PostgreSQL.
type EventLog struct {
	pool *Pool
}

// NewEventLog creates a new EventLog.
func NewEventLog(pool *Pool) *EventLog {
	return &EventLog{pool: pool}
}

// Compile-time interface check.
var _ storage.EventLog = (*EventLog)(nil)

const eventColumns = `id, hash, source_id, venue, item_address, collection_address, name, timestamp, event_type,
	is_offchain, price, price_nano, currency, old_owner, new_owner, snapshot_id, event_payload`

// Append adds a new event and assigns its ID. Returns ErrDuplicateKey if hash exists.
func (l *EventLog) Append(ctx context.Context, e *domain.Event) error {
	if e == nil || e.Hash == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO market_events (
			hash, source_id, venue, stream, item_address, collection_address, name, timestamp, event_type,
			is_offchain, price, price_nano, currency, old_owner, new_owner, snapshot_id, event_payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`

	err := l.pool.QueryRow(ctx, query,
		e.Hash,
		e.SourceID,
		e.Venue,
		string(e.Stream()),
		e.ItemAddress,
		e.CollectionAddress,
		e.Name,
		e.Timestamp,
		string(e.EventType),
		e.IsOffchain,
		e.Price,
		e.PriceNano,
		e.Currency,
		e.OldOwner,
		e.NewOwner,
		e.SnapshotID,
		e.EventPayload,
	).Scan(&e.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert market event: %w", err)
	}
	return nil
}

// ExistsByHash reports whether an event with the given hash has been appended.
func (l *EventLog) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM market_events WHERE hash = $1)
	`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check market event exists: %w", err)
	}
	return exists, nil
}

// GetByHash retrieves an event by its hash.
func (l *EventLog) GetByHash(ctx context.Context, hash string) (*domain.Event, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM market_events
		WHERE hash = $1
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("get market event by hash: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[0], nil
}

// FetchAfter retrieves up to limit events matching f and admitted by the checkpoint, ordered by (timestamp, id) ASC.
// With a NULL last id only strictly later timestamps qualify; the tie-break applies only when it is set.
func (l *EventLog) FetchAfter(ctx context.Context, f storage.EventFilter, cp domain.Checkpoint, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + eventColumns + `
		FROM market_events
		WHERE ($1::TEXT = '' OR venue = $1)
		  AND ($2::TEXT = '' OR stream = $2)
		  AND (timestamp > $3 OR ($4::BIGINT IS NOT NULL AND timestamp = $3 AND id > $4::BIGINT))
		ORDER BY timestamp ASC, id ASC
		LIMIT $5
	`

	rows, err := l.pool.Query(ctx, query, f.Venue, string(f.Stream), cp.LastTimestamp, cp.LastID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch market events after checkpoint: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents scans multiple rows into a slice of Event.
func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var e domain.Event
		var eventType string

		err := rows.Scan(
			&e.ID,
			&e.Hash,
			&e.SourceID,
			&e.Venue,
			&e.ItemAddress,
			&e.CollectionAddress,
			&e.Name,
			&e.Timestamp,
			&eventType,
			&e.IsOffchain,
			&e.Price,
			&e.PriceNano,
			&e.Currency,
			&e.OldOwner,
			&e.NewOwner,
			&e.SnapshotID,
			&e.EventPayload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market event row: %w", err)
		}
		e.EventType = domain.EventType(eventType)

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market event rows: %w", err)
	}

	return events, nil
}
