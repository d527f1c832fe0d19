package market

import (
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"testing"
	"time"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/reconcile"
	"gift-market-tracker/internal/storage"
	"gift-market-tracker/internal/storage/memory"
)

type recordingHook struct {
	listings []*domain.CurrentListing
}

func (h *recordingHook) OnNewListing(_ context.Context, l *domain.CurrentListing) {
	h.listings = append(h.listings, l)
}

type fixture struct {
	machine  *Machine
	listings *memory.ListingStore
	sales    *memory.SaleStore
	hook     *recordingHook
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	listings := memory.NewListingStore()
	sales := memory.NewSaleStore()
	hook := &recordingHook{}
	clock := time.UnixMilli(1_000_000)

	f := &fixture{listings: listings, sales: sales, hook: hook, clock: &clock}
	f.machine = NewMachine(MachineOptions{
		Listings: listings,
		Sales:    sales,
		Finisher: reconcile.NewReconciler(listings, logger),
		Hook:     hook,
		Now:      func() time.Time { return *f.clock },
		Logger:   logger,
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func strPtr(s string) *string { return &s }

func listEvent(hash, item string, ts int64, priceNano string) *domain.Event {
	return &domain.Event{
		Hash:              hash,
		Venue:             "getgems",
		ItemAddress:       item,
		CollectionAddress: "EQcollection",
		Name:              "Plush Pepe #1",
		Timestamp:         ts,
		EventType:         domain.EventTypeList,
		Price:             "10",
		PriceNano:         priceNano,
		Currency:          "TON",
		OldOwner:          "seller",
	}
}

func snapshotListEvent(hash, item, snapshotID string, ts int64) *domain.Event {
	e := listEvent(hash, item, ts, "10000000000")
	e.EventType = domain.EventTypeSnapshotList
	e.SnapshotID = strPtr(snapshotID)
	return e
}

func finishEvent(hash, snapshotID, payload string, ts int64) *domain.Event {
	return &domain.Event{
		Hash:         hash,
		Venue:        "getgems",
		ItemAddress:  domain.SystemAddress,
		Timestamp:    ts,
		EventType:    domain.EventTypeSnapshotFinish,
		SnapshotID:   strPtr(snapshotID),
		EventPayload: strPtr(payload),
	}
}

func (f *fixture) state(t *testing.T) ([]*domain.CurrentListing, []*domain.SaleRecord) {
	t.Helper()
	ls, err := f.listings.List(context.Background(), domain.ListingQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	ss, err := f.sales.GetByTimeRange(context.Background(), 0, 1<<62)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	return ls, ss
}

func TestApply_Idempotent(t *testing.T) {
	seed := listEvent("seed", "X", 1, "5")

	sold := listEvent("sold", "X", 3, "7")
	sold.EventType = domain.EventTypeSold
	sold.NewOwner = "buyer"

	unlist := listEvent("unlist", "X", 3, "")
	unlist.EventType = domain.EventTypeUnlist

	unknown := listEvent("unknown", "X", 3, "")
	unknown.EventType = domain.EventTypeUnknown

	tests := []struct {
		name  string
		event *domain.Event
	}{
		{"LIST", listEvent("list", "X", 2, "10")},
		{"SNAPSHOT_LIST", snapshotListEvent("snap", "X", "S1", 2)},
		{"UNLIST", unlist},
		{"SOLD", sold},
		{"SNAPSHOT_FINISH", finishEvent("fin", "S1", "0", 3)},
		{"UNKNOWN", unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			if err := f.machine.Apply(ctx, seed); err != nil {
				t.Fatalf("seed Apply failed: %v", err)
			}
			if err := f.machine.Apply(ctx, tt.event); err != nil {
				t.Fatalf("first Apply failed: %v", err)
			}
			onceListings, onceSales := f.state(t)

			if err := f.machine.Apply(ctx, tt.event); err != nil {
				t.Fatalf("second Apply failed: %v", err)
			}
			twiceListings, twiceSales := f.state(t)

			if !reflect.DeepEqual(onceListings, twiceListings) {
				t.Errorf("listings differ after redelivery:\nonce:  %+v\ntwice: %+v", onceListings, twiceListings)
			}
			if !reflect.DeepEqual(onceSales, twiceSales) {
				t.Errorf("sales differ after redelivery:\nonce:  %+v\ntwice: %+v", onceSales, twiceSales)
			}
		})
	}
}

func TestApply_ListThenUnlist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.machine.Apply(ctx, listEvent("l", "X", 1, "10")); err != nil {
		t.Fatalf("Apply LIST failed: %v", err)
	}
	unlist := listEvent("u", "X", 2, "")
	unlist.EventType = domain.EventTypeUnlist
	if err := f.machine.Apply(ctx, unlist); err != nil {
		t.Fatalf("Apply UNLIST failed: %v", err)
	}

	if _, err := f.listings.Get(ctx, "X"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no listing for X, got %v", err)
	}
}

func TestApply_ListThenSold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.machine.Apply(ctx, listEvent("l", "X", 1, "10")); err != nil {
		t.Fatalf("Apply LIST failed: %v", err)
	}
	sold := listEvent("s", "X", 2, "12")
	sold.EventType = domain.EventTypeSold
	sold.NewOwner = "buyer"
	if err := f.machine.Apply(ctx, sold); err != nil {
		t.Fatalf("Apply SOLD failed: %v", err)
	}

	if _, err := f.listings.Get(ctx, "X"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no listing for X, got %v", err)
	}
	if f.sales.Len() != 1 {
		t.Fatalf("expected exactly one sale, got %d", f.sales.Len())
	}
	sale, err := f.sales.GetByHash(ctx, "s")
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if sale.Seller != "seller" || sale.Buyer != "buyer" || sale.PriceNano != 12 || sale.SoldAt != 2 {
		t.Errorf("unexpected sale: %+v", sale)
	}
}

func TestApply_UnlistWithoutListingIsNoop(t *testing.T) {
	f := newFixture(t)
	unlist := listEvent("u", "X", 2, "")
	unlist.EventType = domain.EventTypeUnlist
	if err := f.machine.Apply(context.Background(), unlist); err != nil {
		t.Fatalf("Apply UNLIST failed: %v", err)
	}
}

func TestApply_ListFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.machine.Apply(ctx, listEvent("l1", "X", 100, "10")); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	f.advance(time.Second)
	if err := f.machine.Apply(ctx, listEvent("l2", "X", 200, "not-a-number")); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got, err := f.listings.Get(ctx, "X")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PriceNano != 0 {
		t.Errorf("unparseable price should become 0, got %d", got.PriceNano)
	}
	if got.ListedAt != 100 {
		t.Errorf("ListedAt = %d, want first event time 100", got.ListedAt)
	}
	if got.UpdatedAt != f.clock.UnixMilli() {
		t.Errorf("UpdatedAt = %d, want processing time %d", got.UpdatedAt, f.clock.UnixMilli())
	}
	if got.Seller != "seller" {
		t.Errorf("Seller = %q", got.Seller)
	}
}

func TestApply_ListKeepsSnapshotStamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.machine.Apply(ctx, snapshotListEvent("s", "X", "S1", 1)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := f.machine.Apply(ctx, listEvent("l", "X", 2, "5")); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got, _ := f.listings.Get(ctx, "X")
	if got.LastSnapshotID == nil || *got.LastSnapshotID != "S1" {
		t.Errorf("LastSnapshotID = %v, want S1", got.LastSnapshotID)
	}
}

func TestApply_HookFiresOnLiveListOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.machine.Apply(ctx, listEvent("l", "X", 1, "5"))
	_ = f.machine.Apply(ctx, snapshotListEvent("s", "Y", "S1", 1))

	if len(f.hook.listings) != 1 || f.hook.listings[0].ItemAddress != "X" {
		t.Errorf("hook calls = %+v, want one for X", f.hook.listings)
	}
}

func TestApply_MalformedFinishIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.machine.Apply(ctx, listEvent("l", "X", 1, "5")); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	f.advance(time.Hour)

	badPayload := finishEvent("f1", "S1", "soon", 2)
	noSnapshot := finishEvent("f2", "", "9999999999999", 3)
	noSnapshot.SnapshotID = nil

	for _, e := range []*domain.Event{badPayload, noSnapshot} {
		if err := f.machine.Apply(ctx, e); err != nil {
			t.Fatalf("malformed finish must not fail: %v", err)
		}
	}

	if _, err := f.listings.Get(ctx, "X"); err != nil {
		t.Errorf("malformed finish must not purge: %v", err)
	}
}

type failingListings struct {
	*memory.ListingStore
}

func (failingListings) Upsert(context.Context, *domain.CurrentListing) error {
	return errors.New("connection reset")
}

func TestApply_StoreFailurePropagates(t *testing.T) {
	m := NewMachine(MachineOptions{
		Listings: failingListings{memory.NewListingStore()},
		Sales:    memory.NewSaleStore(),
		Logger:   log.New(io.Discard, "", 0),
	})

	if err := m.Apply(context.Background(), listEvent("l", "X", 1, "5")); err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestApply_ListRendersMissingPriceText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := listEvent("l", "X", 1, "1500000000")
	e.Price = ""
	if err := f.machine.Apply(ctx, e); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	got, err := f.listings.Get(ctx, "X")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Price != "1.5" {
		t.Errorf("Price = %q, want 1.5", got.Price)
	}
}
