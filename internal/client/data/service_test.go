package data

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/internal/client/storage/boltdb"
	"github.com/tabsync/tabsync/internal/clock"
)

func setupTestService(t *testing.T) (*Service, *boltdb.Storage, *clock.Fixed) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	clk := clock.NewFixed(1000)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(logger, store, clk, nil), store, clk
}

func TestCreateList(t *testing.T) {
	ctx := context.Background()
	service, store, _ := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)
	assert.NotEmpty(t, list.ID)
	assert.Equal(t, int64(1000), list.CreatedAt)
	assert.Equal(t, int64(1000), list.UpdatedAt)

	got, err := store.GetList(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Name)
}

func TestRenameList_StampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	service, store, clk := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)

	clk.Set(2000)
	require.NoError(t, service.RenameList(ctx, list.ID, "Food"))

	got, err := store.GetList(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Name)
	assert.Equal(t, int64(2000), got.UpdatedAt)
	assert.Equal(t, int64(1000), got.CreatedAt)
}

func TestDeleteList_TombstoneSurvivesForSync(t *testing.T) {
	ctx := context.Background()
	service, store, clk := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)

	clk.Set(2000)
	require.NoError(t, service.DeleteList(ctx, list.ID))

	_, err = store.GetList(ctx, list.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The row still goes out on the next sync cycle.
	changes, err := store.CollectChangesSince(ctx, 1500)
	require.NoError(t, err)
	require.Len(t, changes.Lists, 1)
	assert.True(t, changes.Lists[0].IsDeleted)
	assert.Equal(t, int64(2000), changes.Lists[0].UpdatedAt)
}

func TestCreateField_OrderIsMaxPlusOne(t *testing.T) {
	ctx := context.Background()
	service, _, _ := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)

	f1, err := service.CreateField(ctx, list.ID, "Name", "text", "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, f1.Order)

	f2, err := service.CreateField(ctx, list.ID, "Price", "price", "", "right")
	require.NoError(t, err)
	assert.Equal(t, 1, f2.Order)

	// Order is computed over live fields only.
	require.NoError(t, service.DeleteField(ctx, f2.ID))
	f3, err := service.CreateField(ctx, list.ID, "Qty", "number", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, f3.Order)
}

func TestCreateField_RejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	service, _, _ := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)

	_, err = service.CreateField(ctx, list.ID, "Mood", "emoji", "", "")
	assert.Error(t, err)
}

func TestUpdateField_EmptyArgsKeepCurrent(t *testing.T) {
	ctx := context.Background()
	service, store, _ := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)
	field, err := service.CreateField(ctx, list.ID, "Status", "dropdown", "todo|done", "left")
	require.NoError(t, err)

	require.NoError(t, service.UpdateField(ctx, field.ID, "State", "", ""))

	fields, err := store.GetListFields(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "State", fields[0].Name)
	assert.Equal(t, "todo|done", fields[0].FieldOptions)
	assert.Equal(t, "left", fields[0].Alignment)
}

func TestSetValue_ReusesExistingRow(t *testing.T) {
	ctx := context.Background()
	service, store, clk := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)
	field, err := service.CreateField(ctx, list.ID, "Name", "text", "", "")
	require.NoError(t, err)
	item, err := service.CreateItem(ctx, list.ID)
	require.NoError(t, err)

	v1, err := service.SetValue(ctx, item.ID, field.ID, "Milk")
	require.NoError(t, err)

	clk.Set(2000)
	v2, err := service.SetValue(ctx, item.ID, field.ID, "Bread")
	require.NoError(t, err)

	// Same cell, same row id, no duplicates.
	assert.Equal(t, v1.ID, v2.ID)
	assert.Equal(t, int64(2000), v2.UpdatedAt)

	values, err := store.GetItemValues(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "Bread", values[0].Value)
}

func TestSetValue_ValidatesAgainstFieldType(t *testing.T) {
	ctx := context.Background()
	service, _, _ := setupTestService(t)

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)
	field, err := service.CreateField(ctx, list.ID, "Qty", "number", "", "")
	require.NoError(t, err)
	item, err := service.CreateItem(ctx, list.ID)
	require.NoError(t, err)

	_, err = service.SetValue(ctx, item.ID, field.ID, "not a number")
	assert.Error(t, err)

	_, err = service.SetValue(ctx, item.ID, field.ID, "42")
	assert.NoError(t, err)
}

func TestSetValue_RejectsDropdownChoiceOutsideOptions(t *testing.T) {
	ctx := context.Background()
	service, _, _ := setupTestService(t)

	list, err := service.CreateList(ctx, "Chores")
	require.NoError(t, err)
	field, err := service.CreateField(ctx, list.ID, "Status", "dropdown", "todo|doing|done", "")
	require.NoError(t, err)
	item, err := service.CreateItem(ctx, list.ID)
	require.NoError(t, err)

	_, err = service.SetValue(ctx, item.ID, field.ID, "paused")
	assert.Error(t, err)

	_, err = service.SetValue(ctx, item.ID, field.ID, "doing")
	assert.NoError(t, err)
}

func TestSetValue_RejectsFieldFromAnotherList(t *testing.T) {
	ctx := context.Background()
	service, _, _ := setupTestService(t)

	listA, err := service.CreateList(ctx, "A")
	require.NoError(t, err)
	listB, err := service.CreateList(ctx, "B")
	require.NoError(t, err)

	fieldB, err := service.CreateField(ctx, listB.ID, "Name", "text", "", "")
	require.NoError(t, err)
	itemA, err := service.CreateItem(ctx, listA.ID)
	require.NoError(t, err)

	_, err = service.SetValue(ctx, itemA.ID, fieldB.ID, "x")
	assert.Error(t, err)
}

func TestMutationsFireTrigger(t *testing.T) {
	ctx := context.Background()

	store, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	var fired int
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	service := NewService(logger, store, clock.NewFixed(1000), func() { fired++ })

	list, err := service.CreateList(ctx, "Groceries")
	require.NoError(t, err)
	require.NoError(t, service.RenameList(ctx, list.ID, "Food"))

	assert.Equal(t, 2, fired)
}
