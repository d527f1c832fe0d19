// Package venue holds the wire format shared by the venue adapters.
//
// Venue APIs differ; each is fronted by a gateway that speaks this
// normalized JSON shape. httpfeed polls it and wsfeed receives it pushed.
package venue

import (
	"fmt"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/idhash"
)

// RawEvent is one activity entry as served by a venue gateway.
type RawEvent struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Timestamp         int64  `json:"timestamp"`
	ItemAddress       string `json:"item_address"`
	CollectionAddress string `json:"collection_address"`
	Name              string `json:"name"`
	Price             string `json:"price"`
	PriceNano         string `json:"price_nano"`
	Currency          string `json:"currency"`
	OldOwner          string `json:"old_owner"`
	NewOwner          string `json:"new_owner"`
	IsOffchain        bool   `json:"is_offchain"`
}

// RawListing is one currently listed item as served by a venue gateway.
type RawListing struct {
	ItemAddress       string            `json:"item_address"`
	CollectionAddress string            `json:"collection_address"`
	Name              string            `json:"name"`
	Price             string            `json:"price"`
	PriceNano         string            `json:"price_nano"`
	Currency          string            `json:"currency"`
	Seller            string            `json:"seller"`
	IsOffchain        bool              `json:"is_offchain"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

// EventsPage is the body of GET /events. Events come ordered by
// (timestamp, id); ids compare as byte strings.
type EventsPage struct {
	Events []RawEvent `json:"events"`
}

// ListingsPage is the body of GET /listings.
type ListingsPage struct {
	Items      []RawListing `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

// Normalize converts a raw venue event into a log event.
// Events without a venue id, of unrecognized type or of a snapshot type are rejected.
func Normalize(venue string, raw RawEvent) (*domain.Event, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("event without id")
	}
	eventType := domain.ParseEventType(raw.Type)
	if eventType == domain.EventTypeUnknown || eventType.IsSnapshot() {
		return nil, fmt.Errorf("event %s: unsupported type %q", raw.ID, raw.Type)
	}

	return &domain.Event{
		Hash:              idhash.ComputeVenueEventHash(venue, raw.ID),
		SourceID:          raw.ID,
		Venue:             venue,
		ItemAddress:       raw.ItemAddress,
		CollectionAddress: raw.CollectionAddress,
		Name:              raw.Name,
		Timestamp:         raw.Timestamp,
		EventType:         eventType,
		IsOffchain:        raw.IsOffchain,
		Price:             raw.Price,
		PriceNano:         raw.PriceNano,
		Currency:          raw.Currency,
		OldOwner:          raw.OldOwner,
		NewOwner:          raw.NewOwner,
	}, nil
}

// Item converts a raw listing into a walk item.
func (r RawListing) Item() domain.ListingItem {
	return domain.ListingItem{
		ItemAddress:       r.ItemAddress,
		CollectionAddress: r.CollectionAddress,
		Name:              r.Name,
		Price:             r.Price,
		PriceNano:         r.PriceNano,
		Currency:          r.Currency,
		Seller:            r.Seller,
		IsOffchain:        r.IsOffchain,
		Attributes:        r.Attributes,
	}
}
