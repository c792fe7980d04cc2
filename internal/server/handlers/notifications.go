package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tabsync/tabsync/internal/server/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

// NotificationsHandler serves the change-event polling endpoint. It is a
// best-effort side channel; its checkpoint never interacts with the sync
// watermark.
type NotificationsHandler struct {
	logger  *slog.Logger
	storage storage.NotificationStorage
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(logger *slog.Logger, storage storage.NotificationStorage) *NotificationsHandler {
	return &NotificationsHandler{
		logger:  logger,
		storage: storage,
	}
}

// Poll handles GET /api/notifications/poll?since=<ms>.
func (h *NotificationsHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var since int64
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		var err error
		since, err = strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			h.logger.Warn("Invalid since parameter", "since", sinceStr, "error", err)
			writeError(w, http.StatusBadRequest, "Invalid since parameter")
			return
		}
	}

	notifications, serverTimestamp, err := h.storage.GetNotificationsSince(r.Context(), since)
	if err != nil {
		h.logger.Error("Failed to get notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get notifications")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, api.NotificationsResponse{
		Notifications:   notifications,
		ServerTimestamp: serverTimestamp,
	})
}
