package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tabsync/tabsync/internal/clock"
	"github.com/tabsync/tabsync/pkg/api"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger *slog.Logger
	clock  clock.Clock
}

// NewHealthHandler creates a new handler for health checks.
func NewHealthHandler(logger *slog.Logger, clk clock.Clock) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		clock:  clk,
	}
}

// Health handles GET /health. The endpoint is unauthenticated: clients probe
// it for connectivity before attempting password validation.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, api.HealthResponse{
		Status:    "ok",
		Timestamp: h.clock.NowMillis(),
	})
}
