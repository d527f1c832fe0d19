// Package storage defines the persistence contracts shared by the memory, Postgres and ClickHouse backends.
package storage

import (
	"context"

	"gift-market-tracker/internal/domain"
)

// EventLog provides access to market_events storage.
// Append-only: events are never updated or deleted.
type EventLog interface {
	// Append adds a new event and assigns its ID. Returns ErrDuplicateKey if hash exists.
	Append(ctx context.Context, e *domain.Event) error

	// ExistsByHash reports whether an event with the given hash has been appended.
	ExistsByHash(ctx context.Context, hash string) (bool, error)

	// FetchAfter retrieves up to limit events matching f and admitted by the
	// checkpoint (see domain.Checkpoint.Admits), ordered by (timestamp, id) ASC.
	FetchAfter(ctx context.Context, f EventFilter, cp domain.Checkpoint, limit int) ([]*domain.Event, error)

	// GetByHash retrieves an event by its hash. Returns ErrNotFound if not exists.
	GetByHash(ctx context.Context, hash string) (*domain.Event, error)
}

// EventFilter narrows a log read. Empty fields match everything.
type EventFilter struct {
	Venue  string
	Stream domain.Stream
}

// Matches reports whether e passes the filter.
func (f EventFilter) Matches(e *domain.Event) bool {
	return (f.Venue == "" || e.Venue == f.Venue) && (f.Stream == "" || e.Stream() == f.Stream)
}

// CheckpointStore provides access to consumer_checkpoints storage.
// One row per logical consumer.
type CheckpointStore interface {
	// Get returns the checkpoint for a consumer. Returns ErrNotFound if none has been saved yet.
	Get(ctx context.Context, consumerID string) (*domain.Checkpoint, error)

	// Save upserts the checkpoint for cp.ConsumerID.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Delete removes the checkpoint (operator reset). Returns ErrNotFound if not exists.
	Delete(ctx context.Context, consumerID string) error

	// List returns all checkpoints ordered by consumer id.
	List(ctx context.Context) ([]*domain.Checkpoint, error)
}

// ListingStore provides access to the current_listings projection.
// Single writer; every mutation is keyed by item_address.
type ListingStore interface {
	// Get retrieves the listing for an item. Returns ErrNotFound if not listed.
	Get(ctx context.Context, itemAddress string) (*domain.CurrentListing, error)

	// Upsert creates or overwrites the listing for l.ItemAddress.
	// ListedAt of an existing row is preserved. A nil LastSnapshotID keeps the stored one.
	Upsert(ctx context.Context, l *domain.CurrentListing) error

	// Delete removes the listing for an item. Reports whether a row existed.
	Delete(ctx context.Context, itemAddress string) (bool, error)

	// DeleteStale removes listings of venue (all venues if empty) whose
	// last_snapshot_id is NULL or differs from snapshotID, and whose
	// updated_at < before. Returns the number of rows removed.
	DeleteStale(ctx context.Context, venue, snapshotID string, before int64) (int64, error)

	// List retrieves listings matching q, ordered by price_nano ASC, item_address ASC.
	List(ctx context.Context, q domain.ListingQuery) ([]*domain.CurrentListing, error)

	// FloorPrices returns the lowest positive price_nano per collection_address.
	// An empty venue aggregates across all venues.
	FloorPrices(ctx context.Context, venue string) (map[string]int64, error)

	// Count returns the number of listings of venue (all venues if empty).
	Count(ctx context.Context, venue string) (int64, error)
}

// SaleStore provides access to sale_records storage.
type SaleStore interface {
	// Upsert records a sale keyed by hash. An existing hash is left as is, not an error.
	Upsert(ctx context.Context, s *domain.SaleRecord) error

	// GetByHash retrieves a sale by hash. Returns ErrNotFound if not exists.
	GetByHash(ctx context.Context, hash string) (*domain.SaleRecord, error)

	// GetByItem retrieves all sales of an item, ordered by sold_at ASC.
	GetByItem(ctx context.Context, itemAddress string) ([]*domain.SaleRecord, error)

	// GetByTimeRange retrieves sales within [start, end] (inclusive), ordered by sold_at ASC, hash ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleRecord, error)
}
