package domain

// CurrentListing is the projection row for an item that is currently for sale.
// Exists if and only if the best current knowledge is "this item is listed".
// Corresponds to current_listings table in PostgreSQL.
type CurrentListing struct {
	ItemAddress       string // PRIMARY KEY
	CollectionAddress string
	Venue             string
	Name              string
	Price             string
	PriceNano         int64
	Currency          string
	Seller            string
	IsOffchain        bool
	ListedAt          int64   // event time of the first LIST / SNAPSHOT_LIST seen (ms)
	UpdatedAt         int64   // processing time of the last upsert (ms)
	LastSnapshotID    *string // id of the last snapshot walk that confirmed the listing
}

// ListingQuery filters the current-listing view.
type ListingQuery struct {
	Venue             string // empty = all venues
	CollectionAddress string // empty = all collections
	Limit             int    // 0 = no limit
}

// SaleRecord is a permanent, append-only sale history entry.
// Corresponds to sale_records table.
type SaleRecord struct {
	Hash              string // PRIMARY KEY, hash of the SOLD event
	ItemAddress       string
	CollectionAddress string
	Venue             string
	Name              string
	Price             string
	PriceNano         int64
	Currency          string
	Seller            string
	Buyer             string
	IsOffchain        bool
	SoldAt            int64 // event time (ms)
}
