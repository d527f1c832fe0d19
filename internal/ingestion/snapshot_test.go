package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/idhash"
	"gift-market-tracker/internal/ingestion/stub"
	"gift-market-tracker/internal/storage"
	"gift-market-tracker/internal/storage/memory"
)

func newTestRunner(walker ListingWalker, events *memory.EventLog, allowEmpty bool) *SnapshotRunner {
	return NewSnapshotRunner(SnapshotRunnerOptions{
		Walker:     walker,
		Events:     events,
		AllowEmpty: allowEmpty,
		NewID:      func() string { return "snap-1" },
		Now:        func() time.Time { return time.UnixMilli(42_000) },
		Logger:     quiet,
	})
}

func items(addrs ...string) []domain.ListingItem {
	out := make([]domain.ListingItem, len(addrs))
	for i, a := range addrs {
		out[i] = domain.ListingItem{ItemAddress: a, Seller: "seller-" + a, PriceNano: "100"}
	}
	return out
}

func TestSnapshotRunner_EmitsListsThenFinish(t *testing.T) {
	ctx := context.Background()
	events := memory.NewEventLog()

	// "b" appears twice, as with overlapping pages.
	walker := stub.NewStubListingWalker("getgems", items("a", "b", "b", "c"))
	result, err := newTestRunner(walker, events, false).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Finished || result.Items != 3 || result.StartedAt != 42_000 {
		t.Errorf("unexpected result: %+v", result)
	}
	if events.Len() != 4 {
		t.Fatalf("log has %d events, want 3 lists + 1 finish", events.Len())
	}

	all, _ := events.FetchAfter(ctx, storage.EventFilter{}, domain.NewCheckpoint("x"), 10)
	last := all[len(all)-1]
	if last.EventType != domain.EventTypeSnapshotFinish {
		t.Fatalf("last event = %s, want SNAPSHOT_FINISH", last.EventType)
	}
	if last.Hash != idhash.ComputeSnapshotFinishHash("getgems", "snap-1") || last.ItemAddress != domain.SystemAddress {
		t.Errorf("unexpected finish event: %+v", last)
	}
	start, err := last.SnapshotStart()
	if err != nil || start != 42_000 {
		t.Errorf("finish payload start = %d (err %v), want 42000", start, err)
	}

	first := all[0]
	if first.EventType != domain.EventTypeSnapshotList || *first.SnapshotID != "snap-1" || first.OldOwner != "seller-a" {
		t.Errorf("unexpected snapshot list event: %+v", first)
	}
	if first.Hash != idhash.ComputeSnapshotListHash("snap-1", "a") {
		t.Errorf("unexpected snapshot list hash")
	}
}

func TestSnapshotRunner_WalkErrorSuppressesFinish(t *testing.T) {
	ctx := context.Background()
	events := memory.NewEventLog()

	walker := stub.NewStubListingWalker("getgems", items("a", "b", "c"))
	walker.FailAfter = 2
	walker.Err = errors.New("rate limited")

	result, err := newTestRunner(walker, events, false).Run(ctx)
	if err == nil {
		t.Fatal("expected walk error")
	}
	if result.Finished {
		t.Error("finish must not be emitted after a failed walk")
	}
	if events.Len() != 2 {
		t.Errorf("log has %d events, want the 2 items visited before the failure", events.Len())
	}

	exists, _ := events.ExistsByHash(ctx, idhash.ComputeSnapshotFinishHash("getgems", "snap-1"))
	if exists {
		t.Error("SNAPSHOT_FINISH found in the log")
	}
}

func TestSnapshotRunner_EmptyWalk(t *testing.T) {
	ctx := context.Background()

	events := memory.NewEventLog()
	_, err := newTestRunner(stub.NewStubListingWalker("getgems", nil), events, false).Run(ctx)
	if !errors.Is(err, ErrEmptyWalk) {
		t.Fatalf("expected ErrEmptyWalk, got %v", err)
	}
	if events.Len() != 0 {
		t.Errorf("log has %d events, want 0", events.Len())
	}

	allowed := memory.NewEventLog()
	result, err := newTestRunner(stub.NewStubListingWalker("getgems", nil), allowed, true).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Finished || allowed.Len() != 1 {
		t.Errorf("allowed empty walk should emit finish only: %+v, %d events", result, allowed.Len())
	}
}

func TestSnapshotRunner_CancelledWalk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := memory.NewEventLog()
	result, err := newTestRunner(stub.NewStubListingWalker("getgems", items("a")), events, false).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Finished {
		t.Error("finish must not be emitted for a cancelled walk")
	}
}
