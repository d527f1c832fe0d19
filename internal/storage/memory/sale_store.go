package memory

import (
	"context"
	"sort"
	"sync"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// SaleStore is an in-memory implementation of storage.SaleStore.
type SaleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SaleRecord // keyed by hash
}

// NewSaleStore creates a new in-memory sale store.
func NewSaleStore() *SaleStore {
	return &SaleStore{
		data: make(map[string]*domain.SaleRecord),
	}
}

// Upsert records a sale keyed by hash. An existing hash is left as is.
func (s *SaleStore) Upsert(_ context.Context, sale *domain.SaleRecord) error {
	if sale == nil || sale.Hash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sale.Hash]; exists {
		return nil
	}
	copy := *sale
	s.data[sale.Hash] = &copy
	return nil
}

// GetByHash retrieves a sale by hash.
func (s *SaleStore) GetByHash(_ context.Context, hash string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.data[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *sale
	return &copy, nil
}

// GetByItem retrieves all sales of an item, ordered by sold_at ASC.
func (s *SaleStore) GetByItem(_ context.Context, itemAddress string) ([]*domain.SaleRecord, error) {
	return s.filter(func(r *domain.SaleRecord) bool {
		return r.ItemAddress == itemAddress
	}), nil
}

// GetByTimeRange retrieves sales within [start, end] (inclusive).
func (s *SaleStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SaleRecord, error) {
	return s.filter(func(r *domain.SaleRecord) bool {
		return r.SoldAt >= start && r.SoldAt <= end
	}), nil
}

// Len returns the number of recorded sales.
func (s *SaleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *SaleStore) filter(keep func(*domain.SaleRecord) bool) []*domain.SaleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SaleRecord
	for _, sale := range s.data {
		if keep(sale) {
			copy := *sale
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SoldAt != result[j].SoldAt {
			return result[i].SoldAt < result[j].SoldAt
		}
		return result[i].Hash < result[j].Hash
	})
	return result
}

// Compile-time interface check
var _ storage.SaleStore = (*SaleStore)(nil)
