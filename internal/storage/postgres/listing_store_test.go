package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

func TestListingStore_UpsertPreservesListedAtAndSnapshot(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewListingStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.CurrentListing{
		ItemAddress:    "x",
		Venue:          "getgems",
		PriceNano:      10,
		ListedAt:       1,
		UpdatedAt:      1000,
		LastSnapshotID: ptr("s1"),
	}))

	require.NoError(t, store.Upsert(ctx, &domain.CurrentListing{
		ItemAddress: "x",
		Venue:       "getgems",
		PriceNano:   20,
		ListedAt:    99,
		UpdatedAt:   2000,
	}))

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ListedAt)
	assert.Equal(t, int64(20), got.PriceNano)
	assert.Equal(t, int64(2000), got.UpdatedAt)
	require.NotNil(t, got.LastSnapshotID)
	assert.Equal(t, "s1", *got.LastSnapshotID)
}

func TestListingStore_Delete(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewListingStore(pool)

	existed, err := store.Delete(ctx, "x")
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, store.Upsert(ctx, &domain.CurrentListing{ItemAddress: "x", Venue: "v"}))
	existed, err = store.Delete(ctx, "x")
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = store.Get(ctx, "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListingStore_DeleteStale(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewListingStore(pool)
	const t0 = int64(10_000)

	rows := []*domain.CurrentListing{
		{ItemAddress: "fresh-old-snap", Venue: "v", UpdatedAt: t0 + 5, LastSnapshotID: ptr("old")},
		{ItemAddress: "stale-old-snap", Venue: "v", UpdatedAt: t0 - 5, LastSnapshotID: ptr("old")},
		{ItemAddress: "stale-no-snap", Venue: "v", UpdatedAt: t0 - 5},
		{ItemAddress: "stale-confirmed", Venue: "v", UpdatedAt: t0 - 5, LastSnapshotID: ptr("new")},
		{ItemAddress: "other-venue", Venue: "w", UpdatedAt: t0 - 5, LastSnapshotID: ptr("old")},
	}
	for _, l := range rows {
		require.NoError(t, store.Upsert(ctx, l))
	}

	removed, err := store.DeleteStale(ctx, "v", "new", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	remaining, err := store.List(ctx, domain.ListingQuery{})
	require.NoError(t, err)

	var items []string
	for _, l := range remaining {
		items = append(items, l.ItemAddress)
	}
	assert.ElementsMatch(t, []string{"fresh-old-snap", "stale-confirmed", "other-venue"}, items)
}

func TestListingStore_ListFloorCount(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewListingStore(pool)

	for _, l := range []*domain.CurrentListing{
		{ItemAddress: "a", Venue: "v", CollectionAddress: "c1", PriceNano: 30},
		{ItemAddress: "b", Venue: "v", CollectionAddress: "c1", PriceNano: 10},
		{ItemAddress: "c", Venue: "v", CollectionAddress: "c2", PriceNano: 0},
		{ItemAddress: "d", Venue: "w", CollectionAddress: "c2", PriceNano: 50},
	} {
		require.NoError(t, store.Upsert(ctx, l))
	}

	list, err := store.List(ctx, domain.ListingQuery{Venue: "v", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ItemAddress)
	assert.Equal(t, "b", list[1].ItemAddress)

	list, err = store.List(ctx, domain.ListingQuery{CollectionAddress: "c2"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	floors, err := store.FloorPrices(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"c1": 10, "c2": 50}, floors)

	n, err := store.Count(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
