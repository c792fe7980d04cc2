// Package handlers contains the HTTP and websocket handlers of the sync server.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tabsync/tabsync/internal/server/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

// DeviceIDHeader optionally identifies the syncing device; it is only used
// to tag the change events a sync produces.
const DeviceIDHeader = "X-Device-Id"

// SyncHandler handles synchronization requests.
type SyncHandler struct {
	logger  *slog.Logger
	storage storage.SyncStorage
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(logger *slog.Logger, storage storage.SyncStorage) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		storage: storage,
	}
}

// HandleSync handles POST /api/sync: applies the client's changes and
// returns the server-side delta for the client's watermark.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode sync request", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.Info("Sync request",
		"since", req.LastSyncTimestamp,
		"lists", len(req.Lists),
		"fields", len(req.Fields),
		"items", len(req.Items),
		"item_values", len(req.ItemValues))

	resp, err := h.storage.ApplyAndDiff(ctx, &req, r.Header.Get(DeviceIDHeader))
	if err != nil {
		h.logger.Error("Sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, resp)

	h.logger.Info("Sync completed",
		"since", req.LastSyncTimestamp,
		"server_timestamp", resp.ServerTimestamp,
		"returned_lists", len(resp.Lists),
		"returned_fields", len(resp.Fields),
		"returned_items", len(resp.Items),
		"returned_item_values", len(resp.ItemValues))
}

// writeJSON encodes a response body with the proper content type.
func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError sends the standard error body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: message})
}
