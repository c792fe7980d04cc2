package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tabsync/tabsync/internal/server/storage"
)

// ListsHandler serves the read-only convenience endpoints. They are not part
// of the sync protocol; dashboards and scripts use them to inspect the
// authoritative dataset.
type ListsHandler struct {
	logger  *slog.Logger
	storage storage.ReadStorage
}

// NewListsHandler creates a new read-only lists handler.
func NewListsHandler(logger *slog.Logger, storage storage.ReadStorage) *ListsHandler {
	return &ListsHandler{
		logger:  logger,
		storage: storage,
	}
}

// GetLists handles GET /api/lists.
func (h *ListsHandler) GetLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.storage.GetLists(r.Context())
	if err != nil {
		h.logger.Error("Failed to get lists", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get lists")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, lists)
}

// GetList handles GET /api/lists/{id}.
func (h *ListsHandler) GetList(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	list, err := h.storage.GetList(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "list not found")
			return
		}
		h.logger.Error("Failed to get list", "list_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, list)
}

// GetListFields handles GET /api/lists/{id}/fields.
func (h *ListsHandler) GetListFields(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	fields, err := h.storage.GetListFields(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get fields", "list_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get fields")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, fields)
}

// GetListItems handles GET /api/lists/{id}/items.
func (h *ListsHandler) GetListItems(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	items, err := h.storage.GetListItems(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get items", "list_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get items")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, items)
}

// GetItemValues handles GET /api/items/{id}/values.
func (h *ListsHandler) GetItemValues(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	values, err := h.storage.GetItemValues(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get item values", "item_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get item values")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, values)
}
