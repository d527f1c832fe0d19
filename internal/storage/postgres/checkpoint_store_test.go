package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

func TestCheckpointStore_SaveAndGet(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewCheckpointStore(pool)

	_, err := store.Get(ctx, "getgems")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Initial save with unset last id.
	initial := domain.NewCheckpoint("getgems")
	require.NoError(t, store.Save(ctx, &initial))

	got, err := store.Get(ctx, "getgems")
	require.NoError(t, err)
	assert.Nil(t, got.LastID)

	next := initial.AdvanceTo(domain.Position{Timestamp: 500, ID: 42})
	next.UpdatedAt = 1000
	require.NoError(t, store.Save(ctx, &next))

	got, err = store.Get(ctx, "getgems")
	require.NoError(t, err)
	assert.Equal(t, &next, got)
}

func TestCheckpointStore_FeedCursorKey(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewCheckpointStore(pool)

	cp := domain.NewCheckpoint("feed:getgems")
	cp.LastTimestamp = 500
	cp.LastKey = "evt-c"
	require.NoError(t, store.Save(ctx, &cp))

	got, err := store.Get(ctx, "feed:getgems")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.LastTimestamp)
	assert.Equal(t, "evt-c", got.LastKey)
}

func TestCheckpointStore_DeleteAndList(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewCheckpointStore(pool)

	for _, id := range []string{"portals", "getgems"} {
		cp := domain.NewCheckpoint(id)
		require.NoError(t, store.Save(ctx, &cp))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "getgems", list[0].ConsumerID)

	require.NoError(t, store.Delete(ctx, "getgems"))
	assert.ErrorIs(t, store.Delete(ctx, "getgems"), storage.ErrNotFound)
}
