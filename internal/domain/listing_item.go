package domain

// ListingItem is one item found during a full venue listing walk.
type ListingItem struct {
	ItemAddress       string
	CollectionAddress string
	Name              string
	Price             string
	PriceNano         string
	Currency          string
	Seller            string
	IsOffchain        bool
	Attributes        map[string]string // trait type -> value (model, backdrop, symbol)
}
