package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermark_DefaultsToZero(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	ts, err := store.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)
}

func TestWatermark_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	require.NoError(t, store.SaveLastSyncTimestamp(ctx, 123456789))

	ts, err := store.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), ts)
}

func TestNotificationCheckpoint_IndependentOfWatermark(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	require.NoError(t, store.SaveLastSyncTimestamp(ctx, 100))
	require.NoError(t, store.SaveNotificationCheckpoint(ctx, 999))

	watermark, err := store.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), watermark)

	checkpoint, err := store.GetNotificationCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(999), checkpoint)
}

func TestEnsureDeviceID_Stable(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)

	first, err := store.EnsureDeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := store.EnsureDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
