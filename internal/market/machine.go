// Package market applies normalized events to the current-listing projection and sale history.
package market

import (
	"context"
	"fmt"
	"log"
	"time"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/storage"
)

// Finisher sweeps stale listings once a snapshot walk has completed.
type Finisher interface {
	Finish(ctx context.Context, venue, snapshotID string, startedAt int64) (int64, error)
}

// ListingHook is notified when a LIST event (re)creates a listing.
// Delivery is best effort and never affects the projection.
type ListingHook interface {
	OnNewListing(ctx context.Context, l *domain.CurrentListing)
}

// Machine is the market state machine.
// Every mutation is a keyed upsert or delete, so applying an event twice
// leaves the same state as applying it once.
type Machine struct {
	listings storage.ListingStore
	sales    storage.SaleStore
	finisher Finisher
	hook     ListingHook
	now      func() time.Time
	logger   *log.Logger
}

// MachineOptions contains configuration for creating a Machine.
type MachineOptions struct {
	Listings storage.ListingStore
	Sales    storage.SaleStore
	Finisher Finisher
	Hook     ListingHook      // optional
	Now      func() time.Time // processing clock; default time.Now
	Logger   *log.Logger
}

// NewMachine creates a new market state machine.
func NewMachine(opts MachineOptions) *Machine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Machine{
		listings: opts.Listings,
		sales:    opts.Sales,
		finisher: opts.Finisher,
		hook:     opts.Hook,
		now:      now,
		logger:   logger,
	}
}

// Apply applies one event. It is total over all event types.
// A returned error means the projection could not be written and the event must be retried.
func (m *Machine) Apply(ctx context.Context, e *domain.Event) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	switch e.EventType {
	case domain.EventTypeList, domain.EventTypeSnapshotList:
		return m.applyList(ctx, e)
	case domain.EventTypeUnlist:
		return m.applyUnlist(ctx, e)
	case domain.EventTypeSold:
		return m.applySold(ctx, e)
	case domain.EventTypeSnapshotFinish:
		return m.applyFinish(ctx, e)
	default:
		return nil
	}
}

func (m *Machine) applyList(ctx context.Context, e *domain.Event) error {
	priceNano := domain.ParsePriceNano(e.PriceNano)
	l := &domain.CurrentListing{
		ItemAddress:       e.ItemAddress,
		CollectionAddress: e.CollectionAddress,
		Venue:             e.Venue,
		Name:              e.Name,
		Price:             displayPrice(e.Price, priceNano),
		PriceNano:         priceNano,
		Currency:          e.Currency,
		Seller:            e.OldOwner,
		IsOffchain:        e.IsOffchain,
		ListedAt:          e.Timestamp,
		UpdatedAt:         m.now().UnixMilli(),
	}
	// A plain LIST leaves LastSnapshotID nil, which the store treats as "keep".
	if e.EventType == domain.EventTypeSnapshotList {
		l.LastSnapshotID = e.SnapshotID
	}

	if err := m.listings.Upsert(ctx, l); err != nil {
		return fmt.Errorf("upsert listing %s: %w", e.ItemAddress, err)
	}

	if e.EventType == domain.EventTypeList && m.hook != nil {
		m.hook.OnNewListing(ctx, l)
	}
	return nil
}

func (m *Machine) applyUnlist(ctx context.Context, e *domain.Event) error {
	if _, err := m.listings.Delete(ctx, e.ItemAddress); err != nil {
		return fmt.Errorf("delete listing %s: %w", e.ItemAddress, err)
	}
	return nil
}

func (m *Machine) applySold(ctx context.Context, e *domain.Event) error {
	if _, err := m.listings.Delete(ctx, e.ItemAddress); err != nil {
		return fmt.Errorf("delete sold listing %s: %w", e.ItemAddress, err)
	}

	priceNano := domain.ParsePriceNano(e.PriceNano)
	sale := &domain.SaleRecord{
		Hash:              e.Hash,
		ItemAddress:       e.ItemAddress,
		CollectionAddress: e.CollectionAddress,
		Venue:             e.Venue,
		Name:              e.Name,
		Price:             displayPrice(e.Price, priceNano),
		PriceNano:         priceNano,
		Currency:          e.Currency,
		Seller:            e.OldOwner,
		Buyer:             e.NewOwner,
		IsOffchain:        e.IsOffchain,
		SoldAt:            e.Timestamp,
	}
	if err := m.sales.Upsert(ctx, sale); err != nil {
		return fmt.Errorf("upsert sale %s: %w", e.Hash, err)
	}
	observability.RecordSale(e.Venue)
	return nil
}

// applyFinish runs reconciliation. A malformed finish is logged and skipped:
// it must never purge, and it must not wedge the consumer either.
func (m *Machine) applyFinish(ctx context.Context, e *domain.Event) error {
	if e.SnapshotID == nil || *e.SnapshotID == "" {
		m.logger.Printf("snapshot finish %s has no snapshot id, skipping", e.Hash)
		return nil
	}

	startedAt, err := e.SnapshotStart()
	if err != nil {
		m.logger.Printf("skipping malformed snapshot finish: %v", err)
		return nil
	}

	if m.finisher == nil {
		return nil
	}
	if _, err := m.finisher.Finish(ctx, e.Venue, *e.SnapshotID, startedAt); err != nil {
		return err
	}
	return nil
}

// displayPrice keeps the venue's price text, or renders it from minor units when absent.
func displayPrice(raw string, nano int64) string {
	if raw != "" || nano == 0 {
		return raw
	}
	return domain.FormatNano(nano)
}
