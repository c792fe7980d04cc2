package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/tabsync/tabsync/internal/client/storage"
)

const (
	keyLastSyncTimestamp      = "last_sync_timestamp"
	keyNotificationCheckpoint = "notification_checkpoint"
)

func (s *Storage) putMetaInt64(key string, value int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(value))

		if err := bucket.Put([]byte(key), buf); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
		return nil
	})
}

func (s *Storage) getMetaInt64(key string) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var value int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		buf := bucket.Get([]byte(key))
		if buf == nil {
			// Absent means never synced, which maps to watermark zero.
			value = 0
			return nil
		}

		value = int64(binary.BigEndian.Uint64(buf))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return value, nil
}

// SaveLastSyncTimestamp persists the watermark of the last successful sync.
func (s *Storage) SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error {
	return s.putMetaInt64(keyLastSyncTimestamp, timestamp)
}

// GetLastSyncTimestamp returns the watermark of the last successful sync,
// zero if no sync has completed yet.
func (s *Storage) GetLastSyncTimestamp(ctx context.Context) (int64, error) {
	return s.getMetaInt64(keyLastSyncTimestamp)
}

// SaveNotificationCheckpoint persists the notification polling checkpoint.
func (s *Storage) SaveNotificationCheckpoint(ctx context.Context, timestamp int64) error {
	return s.putMetaInt64(keyNotificationCheckpoint, timestamp)
}

// GetNotificationCheckpoint returns the notification polling checkpoint,
// zero if nothing has been polled yet.
func (s *Storage) GetNotificationCheckpoint(ctx context.Context) (int64, error) {
	return s.getMetaInt64(keyNotificationCheckpoint)
}
