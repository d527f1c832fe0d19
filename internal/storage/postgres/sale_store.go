package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// SaleStore implements storage.SaleStore using PostgreSQL.
type SaleStore struct {
	pool *Pool
}

// NewSaleStore creates a new SaleStore.
func NewSaleStore(pool *Pool) *SaleStore {
	return &SaleStore{pool: pool}
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sale_records (`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (hash) DO NOTHING
	`,
		sale.Hash,
		sale.ItemAddress,
		sale.CollectionAddress,
		sale.Venue,
		sale.Name,
		sale.Price,
		sale.PriceNano,
		sale.Currency,
		sale.Seller,
		sale.Buyer,
		sale.IsOffchain,
		sale.SoldAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sale record: %w", err)
	}
	return nil
}

// GetByHash retrieves a sale by hash.
func (s *SaleStore) GetByHash(ctx context.Context, hash string) (*domain.SaleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+saleColumns+` FROM sale_records WHERE hash = $1
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("get sale record by hash: %w", err)
	}
	defer rows.Close()

	sales, err := scanSales(rows)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, storage.ErrNotFound
	}
	return sales[0], nil
}

// GetByItem retrieves all sales of an item, ordered by sold_at ASC.
func (s *SaleStore) GetByItem(ctx context.Context, itemAddress string) ([]*domain.SaleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sale_records
		WHERE item_address = $1
		ORDER BY sold_at ASC, hash ASC
	`, itemAddress)
	if err != nil {
		return nil, fmt.Errorf("get sale records by item: %w", err)
	}
	defer rows.Close()

	return scanSales(rows)
}

// GetByTimeRange retrieves sales within [start, end] (inclusive).
func (s *SaleStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sale_records
		WHERE sold_at >= $1 AND sold_at <= $2
		ORDER BY sold_at ASC, hash ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get sale records by time range: %w", err)
	}
	defer rows.Close()

	return scanSales(rows)
}

func scanSales(rows pgx.Rows) ([]*domain.SaleRecord, error) {
	var sales []*domain.SaleRecord

	for rows.Next() {
		var r domain.SaleRecord
		err := rows.Scan(
			&r.Hash,
			&r.ItemAddress,
			&r.CollectionAddress,
			&r.Venue,
			&r.Name,
			&r.Price,
			&r.PriceNano,
			&r.Currency,
			&r.Seller,
			&r.Buyer,
			&r.IsOffchain,
			&r.SoldAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale record row: %w", err)
		}
		sales = append(sales, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale record rows: %w", err)
	}

	return sales, nil
}
