package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestReplica_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	list := &api.List{ID: "L1", Name: "Groceries", CreatedAt: 100, UpdatedAt: 100}
	require.NoError(t, store.SaveList(ctx, list))

	got, err := store.GetList(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, list, got)

	_, err = store.GetList(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplica_TombstonesHiddenFromReads(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	require.NoError(t, store.SaveList(ctx, &api.List{ID: "L1", Name: "Live", CreatedAt: 100, UpdatedAt: 100}))
	require.NoError(t, store.SaveList(ctx, &api.List{ID: "L2", Name: "Dead", CreatedAt: 50, UpdatedAt: 200, IsDeleted: true}))

	lists, err := store.GetLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "L1", lists[0].ID)

	_, err = store.GetList(ctx, "L2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplica_FieldsSortedByOrder(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	require.NoError(t, store.SaveField(ctx, &api.Field{ID: "F2", ListID: "L1", Name: "Price", FieldType: "price", Order: 1, CreatedAt: 100, UpdatedAt: 100}))
	require.NoError(t, store.SaveField(ctx, &api.Field{ID: "F1", ListID: "L1", Name: "Name", FieldType: "text", Order: 0, CreatedAt: 200, UpdatedAt: 200}))
	require.NoError(t, store.SaveField(ctx, &api.Field{ID: "F3", ListID: "other", Name: "Elsewhere", FieldType: "text", Order: 0, CreatedAt: 100, UpdatedAt: 100}))

	fields, err := store.GetListFields(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "F1", fields[0].ID)
	assert.Equal(t, "F2", fields[1].ID)
}

func TestReplica_FindValue(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	_, err := store.FindValue(ctx, "I1", "F1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SaveItemValue(ctx, &api.ItemValue{ID: "V1", ItemID: "I1", FieldID: "F1", Value: "old", UpdatedAt: 100}))

	got, err := store.FindValue(ctx, "I1", "F1")
	require.NoError(t, err)
	assert.Equal(t, "V1", got.ID)

	// Duplicate rows for one cell can exist after older builds; the most
	// recently updated row wins so edits converge back onto one id.
	require.NoError(t, store.SaveItemValue(ctx, &api.ItemValue{ID: "V2", ItemID: "I1", FieldID: "F1", Value: "new", UpdatedAt: 300}))

	got, err = store.FindValue(ctx, "I1", "F1")
	require.NoError(t, err)
	assert.Equal(t, "V2", got.ID)
	assert.Equal(t, "new", got.Value)
}

func TestReplica_CollectChangesSince(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	require.NoError(t, store.SaveList(ctx, &api.List{ID: "L1", Name: "Old", CreatedAt: 50, UpdatedAt: 50}))
	require.NoError(t, store.SaveList(ctx, &api.List{ID: "L2", Name: "Boundary", CreatedAt: 100, UpdatedAt: 100}))
	require.NoError(t, store.SaveList(ctx, &api.List{ID: "L3", Name: "Deleted", CreatedAt: 60, UpdatedAt: 150, IsDeleted: true}))
	require.NoError(t, store.SaveItem(ctx, &api.Item{ID: "I1", ListID: "L2", CreatedAt: 120, UpdatedAt: 120}))
	require.NoError(t, store.SaveItemValue(ctx, &api.ItemValue{ID: "V1", ItemID: "I1", FieldID: "F1", Value: "x", UpdatedAt: 90}))

	changes, err := store.CollectChangesSince(ctx, 100)
	require.NoError(t, err)

	// Inclusive lower bound, tombstones included, untouched rows excluded.
	ids := make([]string, 0, len(changes.Lists))
	for _, l := range changes.Lists {
		ids = append(ids, l.ID)
	}
	assert.ElementsMatch(t, []string{"L2", "L3"}, ids)
	require.Len(t, changes.Items, 1)
	assert.Empty(t, changes.ItemValues)

	// A zero watermark collects the entire replica.
	all, err := store.CollectChangesSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all.Lists, 3)
	assert.Len(t, all.Items, 1)
	assert.Len(t, all.ItemValues, 1)
	assert.False(t, all.Empty())
}
