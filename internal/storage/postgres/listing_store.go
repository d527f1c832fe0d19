package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

const listingColumns = `item_address, collection_address, venue, name, price, price_nano, currency,
	seller, is_offchain, listed_at, updated_at, last_snapshot_id`

// Get retrieves the listing for an item.
func (s *ListingStore) Get(ctx context.Context, itemAddress string) (*domain.CurrentListing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM current_listings
		WHERE item_address = $1
	`, itemAddress)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	defer rows.Close()

	listings, err := scanListings(rows)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, storage.ErrNotFound
	}
	return listings[0], nil
}

// Upsert creates or overwrites the listing for l.ItemAddress.
// listed_at survives the overwrite; a NULL snapshot id keeps the stored one.
func (s *ListingStore) Upsert(ctx context.Context, l *domain.CurrentListing) error {
	if l == nil || l.ItemAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO current_listings (
			item_address, collection_address, venue, name, price, price_nano, currency,
			seller, is_offchain, listed_at, updated_at, last_snapshot_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (item_address) DO UPDATE
		SET collection_address = EXCLUDED.collection_address,
		    venue = EXCLUDED.venue,
		    name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    price_nano = EXCLUDED.price_nano,
		    currency = EXCLUDED.currency,
		    seller = EXCLUDED.seller,
		    is_offchain = EXCLUDED.is_offchain,
		    updated_at = EXCLUDED.updated_at,
		    last_snapshot_id = COALESCE(EXCLUDED.last_snapshot_id, current_listings.last_snapshot_id)
	`

	_, err := s.pool.Exec(ctx, query,
		l.ItemAddress,
		l.CollectionAddress,
		l.Venue,
		l.Name,
		l.Price,
		l.PriceNano,
		l.Currency,
		l.Seller,
		l.IsOffchain,
		l.ListedAt,
		l.UpdatedAt,
		l.LastSnapshotID,
	)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

// Delete removes the listing for an item. Reports whether a row existed.
func (s *ListingStore) Delete(ctx context.Context, itemAddress string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM current_listings WHERE item_address = $1
	`, itemAddress)
	if err != nil {
		return false, fmt.Errorf("delete listing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteStale removes listings not reconfirmed by snapshotID and last updated before the cutoff.
// "last_snapshot_id <> $2" alone is NULL for never-snapshotted rows, so the NULL case is spelled out.
func (s *ListingStore) DeleteStale(ctx context.Context, venue, snapshotID string, before int64) (int64, error) {
	if snapshotID == "" {
		return 0, storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM current_listings
		WHERE ($1::TEXT = '' OR venue = $1)
		  AND (last_snapshot_id IS NULL OR last_snapshot_id <> $2)
		  AND updated_at < $3
	`, venue, snapshotID, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List retrieves listings matching q, ordered by price_nano ASC, item_address ASC.
func (s *ListingStore) List(ctx context.Context, q domain.ListingQuery) ([]*domain.CurrentListing, error) {
	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM current_listings
		WHERE ($1::TEXT = '' OR venue = $1)
		  AND ($2::TEXT = '' OR collection_address = $2)
		ORDER BY price_nano ASC, item_address ASC
		LIMIT $3
	`, q.Venue, q.CollectionAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// FloorPrices returns the lowest positive price_nano per collection.
func (s *ListingStore) FloorPrices(ctx context.Context, venue string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT collection_address, MIN(price_nano)
		FROM current_listings
		WHERE ($1::TEXT = '' OR venue = $1)
		  AND price_nano > 0
		  AND collection_address <> ''
		GROUP BY collection_address
	`, venue)
	if err != nil {
		return nil, fmt.Errorf("floor prices: %w", err)
	}
	defer rows.Close()

	floors := make(map[string]int64)
	for rows.Next() {
		var collection string
		var floor int64
		if err := rows.Scan(&collection, &floor); err != nil {
			return nil, fmt.Errorf("scan floor price row: %w", err)
		}
		floors[collection] = floor
	}
	return floors, rows.Err()
}

// Count returns the number of listings of venue (all venues if empty).
func (s *ListingStore) Count(ctx context.Context, venue string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM current_listings WHERE ($1::TEXT = '' OR venue = $1)
	`, venue).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// scanListings scans multiple rows into a slice of CurrentListing.
func scanListings(rows pgx.Rows) ([]*domain.CurrentListing, error) {
	var listings []*domain.CurrentListing

	for rows.Next() {
		var l domain.CurrentListing
		err := rows.Scan(
			&l.ItemAddress,
			&l.CollectionAddress,
			&l.Venue,
			&l.Name,
			&l.Price,
			&l.PriceNano,
			&l.Currency,
			&l.Seller,
			&l.IsOffchain,
			&l.ListedAt,
			&l.UpdatedAt,
			&l.LastSnapshotID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}

	return listings, nil
}
