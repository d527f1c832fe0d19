package memory

import (
	"context"
	"errors"
	"testing"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

func newEvent(hash, venue string, ts int64) *domain.Event {
	return &domain.Event{
		Hash:        hash,
		Venue:       venue,
		ItemAddress: "item-" + hash,
		Timestamp:   ts,
		EventType:   domain.EventTypeList,
	}
}

func TestEventLog_AppendAssignsIDs(t *testing.T) {
	log := NewEventLog()
	ctx := context.Background()

	a := newEvent("a", "v", 100)
	b := newEvent("b", "v", 100)
	if err := log.Append(ctx, a); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := log.Append(ctx, b); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if a.ID == 0 || b.ID <= a.ID {
		t.Errorf("expected increasing ids, got a=%d b=%d", a.ID, b.ID)
	}
}

func TestEventLog_DuplicateHash(t *testing.T) {
	log := NewEventLog()
	ctx := context.Background()

	if err := log.Append(ctx, newEvent("a", "v", 100)); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	err := log.Append(ctx, newEvent("a", "v", 200))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if log.Len() != 1 {
		t.Errorf("expected 1 event, got %d", log.Len())
	}

	exists, err := log.ExistsByHash(ctx, "a")
	if err != nil || !exists {
		t.Errorf("ExistsByHash(a) = %v, %v", exists, err)
	}
}

func TestEventLog_FetchAfterTieBreak(t *testing.T) {
	log := NewEventLog()
	ctx := context.Background()

	a := newEvent("a", "v", 100)
	b := newEvent("b", "v", 100)
	c := newEvent("c", "v", 101)
	for _, e := range []*domain.Event{c, a, b} {
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// c was appended first and has the lowest id, but the highest timestamp.
	all, err := log.FetchAfter(ctx, storage.EventFilter{}, domain.NewCheckpoint("x"), 10)
	if err != nil {
		t.Fatalf("FetchAfter failed: %v", err)
	}
	if len(all) != 3 || all[0].Hash != "a" || all[1].Hash != "b" || all[2].Hash != "c" {
		t.Fatalf("unexpected order: %v", hashes(all))
	}

	cp := domain.NewCheckpoint("x").AdvanceTo(a.Position())
	next, err := log.FetchAfter(ctx, storage.EventFilter{}, cp, 10)
	if err != nil {
		t.Fatalf("FetchAfter failed: %v", err)
	}
	if len(next) != 2 || next[0].Hash != "b" || next[1].Hash != "c" {
		t.Errorf("resuming from a: got %v, want [b c]", hashes(next))
	}
}

func TestEventLog_FetchAfterVenueAndLimit(t *testing.T) {
	log := NewEventLog()
	ctx := context.Background()

	for i, venue := range []string{"v1", "v2", "v1", "v1"} {
		e := newEvent(string(rune('a'+i)), venue, int64(100+i))
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := log.FetchAfter(ctx, storage.EventFilter{Venue: "v1"}, domain.NewCheckpoint("x"), 2)
	if err != nil {
		t.Fatalf("FetchAfter failed: %v", err)
	}
	if len(got) != 2 || got[0].Hash != "a" || got[1].Hash != "c" {
		t.Errorf("got %v, want [a c]", hashes(got))
	}

	if _, err := log.FetchAfter(ctx, storage.EventFilter{}, domain.NewCheckpoint("x"), 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero limit, got %v", err)
	}
}

func TestEventLog_FetchAfterStream(t *testing.T) {
	log := NewEventLog()
	ctx := context.Background()

	live := newEvent("live", "v", 100)
	snap := newEvent("snap", "v", 200)
	snap.EventType = domain.EventTypeSnapshotList
	for _, e := range []*domain.Event{live, snap} {
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := log.FetchAfter(ctx, storage.EventFilter{Venue: "v", Stream: domain.StreamLive}, domain.NewCheckpoint("x"), 10)
	if err != nil {
		t.Fatalf("FetchAfter failed: %v", err)
	}
	if len(got) != 1 || got[0].Hash != "live" {
		t.Errorf("live stream: got %v, want [live]", hashes(got))
	}

	got, err = log.FetchAfter(ctx, storage.EventFilter{Stream: domain.StreamSnapshot}, domain.NewCheckpoint("x"), 10)
	if err != nil {
		t.Fatalf("FetchAfter failed: %v", err)
	}
	if len(got) != 1 || got[0].Hash != "snap" {
		t.Errorf("snapshot stream: got %v, want [snap]", hashes(got))
	}
}

func TestEventLog_ReturnsCopies(t *testing.T) {
	log := NewEventLog()
	ctx := context.Background()

	snap := "s1"
	e := newEvent("a", "v", 1)
	e.SnapshotID = &snap
	if err := log.Append(ctx, e); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	snap = "mutated"

	got, err := log.GetByHash(ctx, "a")
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if *got.SnapshotID != "s1" {
		t.Errorf("stored event was mutated through caller pointer: %s", *got.SnapshotID)
	}

	if _, err := log.GetByHash(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func hashes(events []*domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Hash
	}
	return out
}
