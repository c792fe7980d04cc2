package boltdb

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

// ApplyDelta writes a sync response into the replica inside one transaction,
// in list, field, item, value order so later rows can reference earlier ones
// from the same batch.
//
// Before a value row is written, its parents are looked up against the
// post-apply state of the transaction, not the pre-sync snapshot. A value
// whose item or field is still missing, after an interleaved or partial
// server history, is dropped and counted; it never fails the sync.
func (s *Storage) ApplyDelta(ctx context.Context, resp *api.SyncResponse) (*storage.ApplyResult, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	result := &storage.ApplyResult{}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for i := range resp.Lists {
			if err := putJSON(tx, bucketLists, resp.Lists[i].ID, &resp.Lists[i]); err != nil {
				return err
			}
			result.Applied++
		}

		for i := range resp.Fields {
			if err := putJSON(tx, bucketFields, resp.Fields[i].ID, &resp.Fields[i]); err != nil {
				return err
			}
			result.Applied++
		}

		for i := range resp.Items {
			if err := putJSON(tx, bucketItems, resp.Items[i].ID, &resp.Items[i]); err != nil {
				return err
			}
			result.Applied++
		}

		items := tx.Bucket(bucketItems)
		fields := tx.Bucket(bucketFields)
		for i := range resp.ItemValues {
			v := &resp.ItemValues[i]
			if items.Get([]byte(v.ItemID)) == nil || fields.Get([]byte(v.FieldID)) == nil {
				result.DroppedValues++
				continue
			}
			if err := putJSON(tx, bucketValues, v.ID, v); err != nil {
				return err
			}
			result.Applied++
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
