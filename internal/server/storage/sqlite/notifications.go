package sqlite

import (
	"context"
	"fmt"

	"github.com/tabsync/tabsync/pkg/api"
)

// GetNotificationsSince returns change events recorded after the given
// checkpoint, oldest first, plus the current server timestamp for the
// client's next poll. The notification checkpoint is independent of the
// sync watermark.
func (s *Storage) GetNotificationsSince(ctx context.Context, since int64) (notifications []api.Notification, serverTimestamp int64, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id_origin, event_type, entity_type, entity_id, list_id, created_at
		FROM notifications
		WHERE created_at > ?
		ORDER BY created_at
	`, since)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer closeRows(rows, &err)

	notifications = []api.Notification{}
	for rows.Next() {
		var n api.Notification
		if err = rows.Scan(&n.ID, &n.DeviceIDOrigin, &n.EventType, &n.EntityType, &n.EntityID, &n.ListID, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return notifications, s.clock.NowMillis(), nil
}
