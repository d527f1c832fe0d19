// Package enrichment feeds new listings to the downstream attribute and pricing service.
package enrichment

import (
	"context"
	"fmt"

	"gift-market-tracker/internal/cache"
	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// MarketData holds lookup tables derived from the listing projection:
// collection key (lowercased gift name prefix) -> collection address, and
// collection address -> floor price in minor units.
// Both tables are rebuilt whole and swapped atomically.
type MarketData struct {
	listings    storage.ListingStore
	collections *cache.Snapshot[string, string]
	floors      *cache.Snapshot[string, int64]
}

// NewMarketData creates empty lookup tables backed by listings.
func NewMarketData(listings storage.ListingStore) *MarketData {
	return &MarketData{
		listings:    listings,
		collections: cache.NewSnapshot[string, string](),
		floors:      cache.NewSnapshot[string, int64](),
	}
}

// Refresh rebuilds both tables from the projection.
func (m *MarketData) Refresh(ctx context.Context) error {
	err := m.collections.Refresh(ctx, func(ctx context.Context) (map[string]string, error) {
		listings, err := m.listings.List(ctx, domain.ListingQuery{})
		if err != nil {
			return nil, fmt.Errorf("list listings: %w", err)
		}
		out := make(map[string]string)
		for _, l := range listings {
			if l.CollectionAddress == "" {
				continue
			}
			if key := domain.CollectionKey(l.Name); key != "" {
				out[key] = l.CollectionAddress
			}
		}
		return out, nil
	})
	if err != nil {
		return fmt.Errorf("refresh collections: %w", err)
	}

	err = m.floors.Refresh(ctx, func(ctx context.Context) (map[string]int64, error) {
		return m.listings.FloorPrices(ctx, "")
	})
	if err != nil {
		return fmt.Errorf("refresh floor prices: %w", err)
	}
	return nil
}

// ResolveCollection maps a gift display name to its collection address.
func (m *MarketData) ResolveCollection(name string) (string, bool) {
	return m.collections.Get(domain.CollectionKey(name))
}

// FloorPrice returns the lowest listed price of a collection.
func (m *MarketData) FloorPrice(collectionAddress string) (int64, bool) {
	return m.floors.Get(collectionAddress)
}

// Sizes returns the number of known collections and floor prices.
func (m *MarketData) Sizes() (collections, floors int) {
	return m.collections.Len(), m.floors.Len()
}
