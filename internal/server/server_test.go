package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/tabsync/internal/clock"
	"github.com/tabsync/tabsync/pkg/api"
)

type stubStorage struct {
	resp *api.SyncResponse
}

func (s *stubStorage) ApplyAndDiff(ctx context.Context, req *api.SyncRequest, deviceID string) (*api.SyncResponse, error) {
	return s.resp, nil
}

func (s *stubStorage) GetLists(ctx context.Context) ([]api.List, error) {
	return []api.List{}, nil
}

func (s *stubStorage) GetList(ctx context.Context, id string) (*api.List, error) {
	return &api.List{ID: id}, nil
}

func (s *stubStorage) GetListFields(ctx context.Context, listID string) ([]api.Field, error) {
	return nil, nil
}

func (s *stubStorage) GetListItems(ctx context.Context, listID string) ([]api.Item, error) {
	return nil, nil
}

func (s *stubStorage) GetItemValues(ctx context.Context, itemID string) ([]api.ItemValue, error) {
	return nil, nil
}

func (s *stubStorage) GetNotificationsSince(ctx context.Context, since int64) ([]api.Notification, int64, error) {
	return nil, 0, nil
}

func setupTestServer(t *testing.T, password string) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := &stubStorage{resp: &api.SyncResponse{ServerTimestamp: 150}}

	srv := New(logger, store, clock.NewFixed(1000), Config{Addr: ":0", Password: password})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// The websocket endpoint must upgrade through the full middleware chain,
// which requires the logging wrapper to pass http.Hijacker through.
func TestServer_WebsocketUpgradeThroughMiddleware(t *testing.T) {
	ts := setupTestServer(t, "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	payload, err := json.Marshal(api.SyncRequest{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(api.Envelope{
		ID:      "corr-1",
		Type:    api.MessageTypeSync,
		Payload: payload,
	}))

	var reply api.Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, api.MessageTypeSyncResponse, reply.Type)
	assert.Equal(t, "corr-1", reply.ID)

	var syncResp api.SyncResponse
	require.NoError(t, json.Unmarshal(reply.Payload, &syncResp))
	assert.Equal(t, int64(150), syncResp.ServerTimestamp)
}

func TestServer_WebsocketWrongPasswordCloses1008(t *testing.T) {
	ts := setupTestServer(t, "secret")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Authorization", "Bearer wrong")

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, api.ClosePolicyViolation, closeErr.Code)
}

func TestServer_HealthRoute(t *testing.T) {
	ts := setupTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestServer_SyncRouteRequiresAuth(t *testing.T) {
	ts := setupTestServer(t, "secret")

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
