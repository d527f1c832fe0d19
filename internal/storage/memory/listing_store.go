package memory

import (
	"context"
	"sort"
	"sync"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CurrentListing // keyed by item address
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		data: make(map[string]*domain.CurrentListing),
	}
}

// Get retrieves the listing for an item.
func (s *ListingStore) Get(_ context.Context, itemAddress string) (*domain.CurrentListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.data[itemAddress]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneListing(l), nil
}

// Upsert creates or overwrites the listing for l.ItemAddress.
func (s *ListingStore) Upsert(_ context.Context, l *domain.CurrentListing) error {
	if l == nil || l.ItemAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneListing(l)
	if existing, ok := s.data[l.ItemAddress]; ok {
		stored.ListedAt = existing.ListedAt
		if stored.LastSnapshotID == nil {
			stored.LastSnapshotID = existing.LastSnapshotID
		}
	}
	s.data[l.ItemAddress] = stored
	return nil
}

// Delete removes the listing for an item. Reports whether a row existed.
func (s *ListingStore) Delete(_ context.Context, itemAddress string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[itemAddress]; !ok {
		return false, nil
	}
	delete(s.data, itemAddress)
	return true, nil
}

// DeleteStale removes listings not reconfirmed by snapshotID and last updated before the cutoff.
func (s *ListingStore) DeleteStale(_ context.Context, venue, snapshotID string, before int64) (int64, error) {
	if snapshotID == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for item, l := range s.data {
		if venue != "" && l.Venue != venue {
			continue
		}
		if l.LastSnapshotID != nil && *l.LastSnapshotID == snapshotID {
			continue
		}
		if l.UpdatedAt >= before {
			continue
		}
		delete(s.data, item)
		removed++
	}
	return removed, nil
}

// List retrieves listings matching q, ordered by price_nano ASC, item_address ASC.
func (s *ListingStore) List(_ context.Context, q domain.ListingQuery) ([]*domain.CurrentListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CurrentListing
	for _, l := range s.data {
		if q.Venue != "" && l.Venue != q.Venue {
			continue
		}
		if q.CollectionAddress != "" && l.CollectionAddress != q.CollectionAddress {
			continue
		}
		result = append(result, cloneListing(l))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PriceNano != result[j].PriceNano {
			return result[i].PriceNano < result[j].PriceNano
		}
		return result[i].ItemAddress < result[j].ItemAddress
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// FloorPrices returns the lowest positive price_nano per collection.
func (s *ListingStore) FloorPrices(_ context.Context, venue string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	floors := make(map[string]int64)
	for _, l := range s.data {
		if venue != "" && l.Venue != venue {
			continue
		}
		if l.PriceNano <= 0 || l.CollectionAddress == "" {
			continue
		}
		if cur, ok := floors[l.CollectionAddress]; !ok || l.PriceNano < cur {
			floors[l.CollectionAddress] = l.PriceNano
		}
	}
	return floors, nil
}

// Count returns the number of listings of venue (all venues if empty).
func (s *ListingStore) Count(_ context.Context, venue string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if venue == "" {
		return int64(len(s.data)), nil
	}
	var n int64
	for _, l := range s.data {
		if l.Venue == venue {
			n++
		}
	}
	return n, nil
}

func cloneListing(l *domain.CurrentListing) *domain.CurrentListing {
	copy := *l
	copy.LastSnapshotID = cloneString(l.LastSnapshotID)
	return &copy
}

// Compile-time interface check
var _ storage.ListingStore = (*ListingStore)(nil)
