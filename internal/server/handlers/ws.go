package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tabsync/tabsync/internal/server/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

const (
	wsWriteTimeout = 30 * time.Second
	// wsReadTimeout bounds the wait for the next frame so a dead peer
	// releases its goroutine; clients redial lazily on the next cycle.
	wsReadTimeout = 30 * time.Second
)

// WSHandler binds the sync protocol to a persistent websocket connection.
// Each inbound sync-typed envelope runs the same merge engine as POST
// /api/sync and is answered by a syncResponse envelope with the same
// correlation id.
type WSHandler struct {
	logger   *slog.Logger
	storage  storage.SyncStorage
	password string
	readWait time.Duration
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket handler. An empty password disables
// authentication, mirroring the HTTP middleware.
func NewWSHandler(logger *slog.Logger, storage storage.SyncStorage, password string) *WSHandler {
	return &WSHandler{
		logger:   logger,
		storage:  storage,
		password: password,
		readWait: wsReadTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// The server is deployed on trusted networks; browser origins
			// are not part of the threat model.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS handles GET /ws. Authentication failures close the connection
// with code 1008 so the client can distinguish a wrong password from a
// transport failure.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	if !h.authorized(r) {
		h.logger.Warn("Websocket authentication rejected", "remote_addr", r.RemoteAddr)
		msg := websocket.FormatCloseMessage(api.ClosePolicyViolation, "authentication rejected")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
		return
	}

	h.logger.Info("Websocket connected", "remote_addr", r.RemoteAddr)
	h.serve(r, conn)
	h.logger.Info("Websocket disconnected", "remote_addr", r.RemoteAddr)
}

// authorized checks the Bearer password carried on the upgrade request.
func (h *WSHandler) authorized(r *http.Request) bool {
	if h.password == "" {
		return true
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.password)) == 1
}

func (h *WSHandler) serve(r *http.Request, conn *websocket.Conn) {
	deviceID := r.Header.Get(DeviceIDHeader)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.readWait)); err != nil {
			h.logger.Warn("Failed to set read deadline", "error", err)
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Websocket read failed", "error", err)
			}
			return
		}

		var env api.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.writeEnvelope(conn, errorEnvelope("", "invalid envelope"))
			continue
		}

		switch env.Type {
		case api.MessageTypeSync:
			h.handleSyncFrame(r, conn, &env, deviceID)
		default:
			h.logger.Warn("Unknown websocket message type", "type", env.Type)
			h.writeEnvelope(conn, errorEnvelope(env.ID, "unknown message type"))
		}
	}
}

func (h *WSHandler) handleSyncFrame(r *http.Request, conn *websocket.Conn, env *api.Envelope, deviceID string) {
	var req api.SyncRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		h.logger.Warn("Failed to decode sync payload", "error", err)
		h.writeEnvelope(conn, errorEnvelope(env.ID, "invalid sync payload"))
		return
	}

	resp, err := h.storage.ApplyAndDiff(r.Context(), &req, deviceID)
	if err != nil {
		h.logger.Error("Websocket sync failed", "error", err)
		h.writeEnvelope(conn, errorEnvelope(env.ID, "sync failed"))
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Failed to encode sync response", "error", err)
		h.writeEnvelope(conn, errorEnvelope(env.ID, "sync failed"))
		return
	}

	h.writeEnvelope(conn, &api.Envelope{
		ID:      env.ID,
		Type:    api.MessageTypeSyncResponse,
		Payload: payload,
	})
}

func (h *WSHandler) writeEnvelope(conn *websocket.Conn, env *api.Envelope) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(env); err != nil {
		h.logger.Warn("Websocket write failed", "error", err)
	}
}

func errorEnvelope(id, message string) *api.Envelope {
	payload, _ := json.Marshal(api.ErrorPayload{Message: message})
	return &api.Envelope{
		ID:      id,
		Type:    api.MessageTypeError,
		Payload: payload,
	}
}
