// Package storage defines the interfaces of the client's local replica.
package storage

import (
	"context"

	"github.com/tabsync/tabsync/pkg/api"
)

// ChangeSet holds the locally modified rows a sync cycle uploads.
type ChangeSet struct {
	Lists      []api.List
	Fields     []api.Field
	Items      []api.Item
	ItemValues []api.ItemValue
}

// Empty reports whether the change set carries no rows.
func (c *ChangeSet) Empty() bool {
	return len(c.Lists) == 0 && len(c.Fields) == 0 && len(c.Items) == 0 && len(c.ItemValues) == 0
}

// ApplyResult reports what a delta application did.
type ApplyResult struct {
	Applied       int
	DroppedValues int
}

// ReplicaStorage is the durable local replica of lists, fields, items and
// item values.
type ReplicaStorage interface {
	// Local reads. The Get* methods skip tombstoned rows; lookups of
	// missing or deleted rows return ErrNotFound.
	GetLists(ctx context.Context) ([]api.List, error)
	GetList(ctx context.Context, id string) (*api.List, error)
	GetListFields(ctx context.Context, listID string) ([]api.Field, error)
	GetListItems(ctx context.Context, listID string) ([]api.Item, error)
	GetItemValues(ctx context.Context, itemID string) ([]api.ItemValue, error)
	// FindValue returns the live value row for an (item, field) pair, or
	// ErrNotFound. Edits must reuse the row so sync never accumulates
	// duplicate value rows for one cell.
	FindValue(ctx context.Context, itemID, fieldID string) (*api.ItemValue, error)

	// Local writes, keyed by id. Rows are stored as given; stamping
	// updatedAt is the caller's job.
	SaveList(ctx context.Context, list *api.List) error
	SaveField(ctx context.Context, field *api.Field) error
	SaveItem(ctx context.Context, item *api.Item) error
	SaveItemValue(ctx context.Context, value *api.ItemValue) error

	// CollectChangesSince returns every stored row, deleted or not, with
	// updatedAt >= since. Pure read; since == 0 returns the whole replica.
	CollectChangesSince(ctx context.Context, since int64) (*ChangeSet, error)

	// ApplyDelta applies a sync response in list, field, item, value order
	// inside one transaction. Item values whose parents are absent from the
	// post-apply replica are dropped and counted, never an error.
	ApplyDelta(ctx context.Context, resp *api.SyncResponse) (*ApplyResult, error)
}

// WatermarkStorage persists the last successful sync watermark. It is only
// advanced after a fully committed round trip.
type WatermarkStorage interface {
	GetLastSyncTimestamp(ctx context.Context) (int64, error)
	SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error
}

// CheckpointStorage persists the notification polling checkpoint. It is
// deliberately separate from WatermarkStorage: the side channel must never
// interact with the sync watermark.
type CheckpointStorage interface {
	GetNotificationCheckpoint(ctx context.Context) (int64, error)
	SaveNotificationCheckpoint(ctx context.Context, timestamp int64) error
}
