package clickhouse

import (
	"context"
	"fmt"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// SaleStore implements storage.SaleStore using ClickHouse.
// The table is a ReplacingMergeTree ordered by hash; reads use FINAL so
// a hash that slipped in twice still reads as one sale.
type SaleStore struct {
	conn *Conn
}

// NewSaleStore creates a new SaleStore.
func NewSaleStore(conn *Conn) *SaleStore {
	return &SaleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SaleStore = (*SaleStore)(nil)

const saleColumns = `hash, item_address, collection_address, venue, name, price, price_nano,
	currency, seller, buyer, is_offchain, sold_at`

// Upsert records a sale keyed by hash. An existing hash is left as is.
func (s *SaleStore) Upsert(ctx context.Context, sale *domain.SaleRecord) error {
	if sale == nil || sale.Hash == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, sale.Hash)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO sale_records (`+saleColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		sale.Hash, sale.ItemAddress, sale.CollectionAddress, sale.Venue, sale.Name,
		sale.Price, sale.PriceNano, sale.Currency, sale.Seller, sale.Buyer,
		sale.IsOffchain, sale.SoldAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByHash retrieves a sale by hash.
func (s *SaleStore) GetByHash(ctx context.Context, hash string) (*domain.SaleRecord, error) {
	sales, err := s.query(ctx, `
		SELECT `+saleColumns+`
		FROM sale_records FINAL
		WHERE hash = ?
		LIMIT 1
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("get sale by hash: %w", err)
	}
	if len(sales) == 0 {
		return nil, storage.ErrNotFound
	}
	return sales[0], nil
}

// GetByItem retrieves all sales of an item, ordered by sold_at ASC.
func (s *SaleStore) GetByItem(ctx context.Context, itemAddress string) ([]*domain.SaleRecord, error) {
	sales, err := s.query(ctx, `
		SELECT `+saleColumns+`
		FROM sale_records FINAL
		WHERE item_address = ?
		ORDER BY sold_at ASC, hash ASC
	`, itemAddress)
	if err != nil {
		return nil, fmt.Errorf("get sales by item: %w", err)
	}
	return sales, nil
}

// GetByTimeRange retrieves sales within [start, end] (inclusive).
func (s *SaleStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleRecord, error) {
	sales, err := s.query(ctx, `
		SELECT `+saleColumns+`
		FROM sale_records FINAL
		WHERE sold_at >= ? AND sold_at <= ?
		ORDER BY sold_at ASC, hash ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get sales by time range: %w", err)
	}
	return sales, nil
}

func (s *SaleStore) exists(ctx context.Context, hash string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM sale_records WHERE hash = ?
	`, hash).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SaleStore) query(ctx context.Context, query string, args ...any) ([]*domain.SaleRecord, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.SaleRecord
	for rows.Next() {
		var r domain.SaleRecord
		err := rows.Scan(
			&r.Hash, &r.ItemAddress, &r.CollectionAddress, &r.Venue, &r.Name,
			&r.Price, &r.PriceNano, &r.Currency, &r.Seller, &r.Buyer,
			&r.IsOffchain, &r.SoldAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}
