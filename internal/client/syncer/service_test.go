package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/tabsync/internal/client/storage/boltdb"
	"github.com/tabsync/tabsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupReplica(t *testing.T) *boltdb.Storage {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

// fakeTransport is a scripted transport binding.
type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	lastReq *api.SyncRequest
	resp    *api.SyncResponse
	err     error
	block   chan struct{} // when set, Sync waits until it closes
}

func (f *fakeTransport) Sync(ctx context.Context, req *api.SyncRequest) (*api.SyncResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func serverDelta() *api.SyncResponse {
	return &api.SyncResponse{
		Lists:           []api.List{{ID: "L1", Name: "Groceries", CreatedAt: 100, UpdatedAt: 100}},
		Items:           []api.Item{{ID: "I1", ListID: "L1", CreatedAt: 110, UpdatedAt: 110}},
		ServerTimestamp: 150,
	}
}

func TestSync_AppliesDeltaAndAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	replica := setupReplica(t)
	primary := &fakeTransport{resp: serverDelta()}

	service := NewService(setupTestLogger(), replica, replica, primary, &fakeTransport{})

	result, err := service.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, result.UsedFallback)
	assert.Equal(t, 2, result.Pulled)
	assert.Equal(t, int64(150), result.ServerTimestamp)

	watermark, err := replica.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(150), watermark)

	lists, err := replica.GetLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "L1", lists[0].ID)
}

func TestSync_CollectsChangesSinceWatermark(t *testing.T) {
	ctx := context.Background()
	replica := setupReplica(t)

	require.NoError(t, replica.SaveList(ctx, &api.List{ID: "L1", Name: "Synced", CreatedAt: 50, UpdatedAt: 50}))
	require.NoError(t, replica.SaveList(ctx, &api.List{ID: "L2", Name: "Dirty", CreatedAt: 150, UpdatedAt: 150}))
	require.NoError(t, replica.SaveLastSyncTimestamp(ctx, 100))

	unary := &fakeTransport{resp: &api.SyncResponse{ServerTimestamp: 200}}
	service := NewService(setupTestLogger(), replica, replica, nil, unary)

	result, err := service.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pushed)

	require.NotNil(t, unary.lastReq)
	assert.Equal(t, int64(100), unary.lastReq.LastSyncTimestamp)
	require.Len(t, unary.lastReq.Lists, 1)
	assert.Equal(t, "L2", unary.lastReq.Lists[0].ID)
}

func TestSync_FallsBackWhenRealtimeFails(t *testing.T) {
	ctx := context.Background()
	replica := setupReplica(t)

	primary := &fakeTransport{err: errors.New("websocket timeout")}
	fallback := &fakeTransport{resp: serverDelta()}

	service := NewService(setupTestLogger(), replica, replica, primary, fallback)

	result, err := service.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, fallback.callCount())

	// Same end state as a realtime-only sync: delta applied, watermark
	// advanced.
	watermark, err := replica.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(150), watermark)

	lists, err := replica.GetLists(ctx)
	require.NoError(t, err)
	assert.Len(t, lists, 1)
}

func TestSync_FailureLeavesWatermarkUntouched(t *testing.T) {
	ctx := context.Background()
	replica := setupReplica(t)
	require.NoError(t, replica.SaveLastSyncTimestamp(ctx, 100))

	service := NewService(setupTestLogger(), replica, replica,
		&fakeTransport{err: errors.New("refused")},
		&fakeTransport{err: errors.New("refused")})

	_, err := service.Sync(ctx)
	require.Error(t, err)

	// The next cycle retries from unchanged state.
	watermark, err := replica.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), watermark)
}

func TestSync_SingleFlight(t *testing.T) {
	ctx := context.Background()
	replica := setupReplica(t)

	block := make(chan struct{})
	unary := &fakeTransport{resp: &api.SyncResponse{ServerTimestamp: 10}, block: block}
	service := NewService(setupTestLogger(), replica, replica, nil, unary)

	done := make(chan error, 1)
	go func() {
		_, err := service.Sync(ctx)
		done <- err
	}()

	// Wait for the first cycle to reach the transport, then try to overlap.
	require.Eventually(t, func() bool {
		return unary.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := service.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncInFlight)

	close(block)
	require.NoError(t, <-done)
}

func TestTriggerSync_Coalesces(t *testing.T) {
	replica := setupReplica(t)
	service := NewService(setupTestLogger(), replica, replica, nil, &fakeTransport{})

	// Never blocks, however many triggers pile up.
	for i := 0; i < 10; i++ {
		service.TriggerSync()
	}
}
