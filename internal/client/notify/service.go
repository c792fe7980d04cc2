// Package notify polls the server's change-event side channel. It is best
// effort: data correctness never depends on it, and its checkpoint is kept
// apart from the sync watermark.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	clientapi "github.com/tabsync/tabsync/internal/client/api"
	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

// Service polls notifications for one device.
type Service struct {
	logger      *slog.Logger
	client      clientapi.ClientAPI
	checkpoints storage.CheckpointStorage
	deviceID    string
}

// NewService creates a notification poller. Events originated by deviceID
// itself are filtered out.
func NewService(logger *slog.Logger, client clientapi.ClientAPI, checkpoints storage.CheckpointStorage, deviceID string) *Service {
	return &Service{
		logger:      logger,
		client:      client,
		checkpoints: checkpoints,
		deviceID:    deviceID,
	}
}

// Poll fetches events recorded since the stored checkpoint and advances it.
func (s *Service) Poll(ctx context.Context) ([]api.Notification, error) {
	since, err := s.checkpoints.GetNotificationCheckpoint(ctx)
	if err != nil {
		s.logger.Warn("Failed to read notification checkpoint, using 0", "error", err)
		since = 0
	}

	resp, err := s.client.PollNotifications(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("notification poll failed: %w", err)
	}

	events := make([]api.Notification, 0, len(resp.Notifications))
	for _, n := range resp.Notifications {
		if s.deviceID != "" && n.DeviceIDOrigin == s.deviceID {
			continue
		}
		events = append(events, n)
	}

	if err := s.checkpoints.SaveNotificationCheckpoint(ctx, resp.ServerTimestamp); err != nil {
		s.logger.Warn("Failed to save notification checkpoint", "error", err)
	}

	return events, nil
}
