// Package ws implements the realtime transport binding of the sync
// protocol: the same SyncRequest/SyncResponse payloads framed in envelopes
// over a persistent websocket connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	clientapi "github.com/tabsync/tabsync/internal/client/api"
	"github.com/tabsync/tabsync/pkg/api"
)

// responseWait bounds one sync round trip. The orchestrator falls back to
// the unary transport when it elapses.
const responseWait = 30 * time.Second

// Transport is the websocket binding. It keeps one connection alive across
// sync cycles and redials lazily after a failure.
type Transport struct {
	logger   *slog.Logger
	url      string
	password string
	deviceID string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewTransport creates a websocket transport for the given server base URL
// (http:// or https://; the scheme is rewritten to ws:// or wss://).
func NewTransport(logger *slog.Logger, baseURL, password, deviceID string) *Transport {
	return &Transport{
		logger:   logger,
		url:      wsURL(baseURL),
		password: password,
		deviceID: deviceID,
	}
}

// wsURL rewrites an HTTP base URL into the websocket endpoint URL.
func wsURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Sync performs one protocol round trip over the websocket. Any failure
// invalidates the connection so the next attempt redials; the caller is
// expected to fall back to the unary transport for the current cycle.
// A close with code 1008 is reported as ErrUnauthorized.
func (t *Transport) Sync(ctx context.Context, req *api.SyncRequest) (*api.SyncResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.ensureConn(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.roundTrip(conn, req)
	if err != nil {
		t.drop()
		if isPolicyViolation(err) {
			return nil, clientapi.ErrUnauthorized
		}
		return nil, err
	}
	return resp, nil
}

// Close tears down the connection if one is open.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *Transport) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}

	header := http.Header{}
	if t.password != "" {
		header.Set("Authorization", "Bearer "+t.password)
	}
	if t.deviceID != "" {
		header.Set("X-Device-Id", t.deviceID)
	}

	dialer := websocket.Dialer{HandshakeTimeout: responseWait}
	conn, _, err := dialer.DialContext(ctx, t.url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	t.logger.Debug("Websocket connected", "url", t.url)
	t.conn = conn
	return conn, nil
}

func (t *Transport) drop() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

func (t *Transport) roundTrip(conn *websocket.Conn, req *api.SyncRequest) (*api.SyncResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync request: %w", err)
	}

	correlationID := uuid.New().String()
	env := api.Envelope{
		ID:      correlationID,
		Type:    api.MessageTypeSync,
		Payload: payload,
	}

	deadline := time.Now().Add(responseWait)

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteJSON(&env); err != nil {
		return nil, fmt.Errorf("websocket write failed: %w", err)
	}

	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("websocket read failed: %w", err)
		}

		var reply api.Envelope
		if err := json.Unmarshal(message, &reply); err != nil {
			return nil, fmt.Errorf("failed to decode envelope: %w", err)
		}

		switch {
		case reply.Type == api.MessageTypeSyncResponse && reply.ID == correlationID:
			var resp api.SyncResponse
			if err := json.Unmarshal(reply.Payload, &resp); err != nil {
				return nil, fmt.Errorf("failed to decode sync response: %w", err)
			}
			return &resp, nil

		case reply.Type == api.MessageTypeError:
			var errPayload api.ErrorPayload
			_ = json.Unmarshal(reply.Payload, &errPayload)
			return nil, fmt.Errorf("server error frame: %s", errPayload.Message)

		default:
			// A stale reply from an earlier, abandoned cycle. Keep reading
			// until the matching id or the deadline.
			t.logger.Debug("Skipping stale websocket frame", "type", reply.Type, "id", reply.ID)
		}
	}
}

// isPolicyViolation reports whether the error is a close with code 1008,
// the server's authentication rejection.
func isPolicyViolation(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && closeErr.Code == api.ClosePolicyViolation
}
