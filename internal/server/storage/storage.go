// Package storage defines the interfaces of the server's authoritative store.
package storage

import (
	"context"

	"github.com/tabsync/tabsync/pkg/api"
)

// SyncStorage is the merge engine's view of the authoritative store.
type SyncStorage interface {
	// ApplyAndDiff upserts every row of the request inside one transaction,
	// then returns the server-side delta for the request's watermark and a
	// fresh server timestamp. deviceID may be empty; it is only recorded on
	// the change events this sync produces.
	ApplyAndDiff(ctx context.Context, req *api.SyncRequest, deviceID string) (*api.SyncResponse, error)
}

// ReadStorage backs the read-only convenience endpoints.
type ReadStorage interface {
	GetLists(ctx context.Context) ([]api.List, error)
	GetList(ctx context.Context, id string) (*api.List, error)
	GetListFields(ctx context.Context, listID string) ([]api.Field, error)
	GetListItems(ctx context.Context, listID string) ([]api.Item, error)
	GetItemValues(ctx context.Context, itemID string) ([]api.ItemValue, error)
}

// NotificationStorage records and serves change events.
type NotificationStorage interface {
	// GetNotificationsSince returns events with createdAt > since, oldest
	// first, together with the current server timestamp.
	GetNotificationsSince(ctx context.Context, since int64) ([]api.Notification, int64, error)
}
