package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

// putJSON stores one row as JSON keyed by its id.
func putJSON(tx *bbolt.Tx, bucket []byte, id string, row any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	b := tx.Bucket(bucket)
	if b == nil {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	if err := b.Put([]byte(id), data); err != nil {
		return fmt.Errorf("failed to put row: %w", err)
	}
	return nil
}

func (s *Storage) save(bucket []byte, id string, row any) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, bucket, id, row)
	})
}

// SaveList stores a list row as given.
func (s *Storage) SaveList(ctx context.Context, list *api.List) error {
	return s.save(bucketLists, list.ID, list)
}

// SaveField stores a field row as given.
func (s *Storage) SaveField(ctx context.Context, field *api.Field) error {
	return s.save(bucketFields, field.ID, field)
}

// SaveItem stores an item row as given.
func (s *Storage) SaveItem(ctx context.Context, item *api.Item) error {
	return s.save(bucketItems, item.ID, item)
}

// SaveItemValue stores a value row as given.
func (s *Storage) SaveItemValue(ctx context.Context, value *api.ItemValue) error {
	return s.save(bucketValues, value.ID, value)
}

// GetList returns one live list by id.
func (s *Storage) GetList(ctx context.Context, id string) (*api.List, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var list api.List
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLists).Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("failed to unmarshal list: %w", err)
		}
		if list.IsDeleted {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// GetLists returns all live lists sorted by creation time.
func (s *Storage) GetLists(ctx context.Context) ([]api.List, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	lists := []api.List{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLists).ForEach(func(_, data []byte) error {
			var l api.List
			if err := json.Unmarshal(data, &l); err != nil {
				return fmt.Errorf("failed to unmarshal list: %w", err)
			}
			if !l.IsDeleted {
				lists = append(lists, l)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(lists, func(i, j int) bool { return lists[i].CreatedAt < lists[j].CreatedAt })
	return lists, nil
}

// GetListFields returns the live fields of a list in column order.
func (s *Storage) GetListFields(ctx context.Context, listID string) ([]api.Field, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	fields := []api.Field{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFields).ForEach(func(_, data []byte) error {
			var f api.Field
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("failed to unmarshal field: %w", err)
			}
			if f.ListID == listID && !f.IsDeleted {
				fields = append(fields, f)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Order != fields[j].Order {
			return fields[i].Order < fields[j].Order
		}
		return fields[i].CreatedAt < fields[j].CreatedAt
	})
	return fields, nil
}

// GetListItems returns the live items of a list sorted by creation time.
func (s *Storage) GetListItems(ctx context.Context, listID string) ([]api.Item, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	items := []api.Item{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketItems).ForEach(func(_, data []byte) error {
			var it api.Item
			if err := json.Unmarshal(data, &it); err != nil {
				return fmt.Errorf("failed to unmarshal item: %w", err)
			}
			if it.ListID == listID && !it.IsDeleted {
				items = append(items, it)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })
	return items, nil
}

// GetItemValues returns the values of one item.
func (s *Storage) GetItemValues(ctx context.Context, itemID string) ([]api.ItemValue, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	values := []api.ItemValue{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketValues).ForEach(func(_, data []byte) error {
			var v api.ItemValue
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("failed to unmarshal item value: %w", err)
			}
			if v.ItemID == itemID {
				values = append(values, v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(values, func(i, j int) bool { return values[i].UpdatedAt < values[j].UpdatedAt })
	return values, nil
}

// FindValue returns the value row for an (item, field) pair.
// If duplicates ever slipped in through older builds, the most recently
// updated row wins so edits converge back onto a single row.
func (s *Storage) FindValue(ctx context.Context, itemID, fieldID string) (*api.ItemValue, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var found *api.ItemValue
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketValues).ForEach(func(_, data []byte) error {
			var v api.ItemValue
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("failed to unmarshal item value: %w", err)
			}
			if v.ItemID == itemID && v.FieldID == fieldID {
				if found == nil || v.UpdatedAt > found.UpdatedAt {
					value := v
					found = &value
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

// CollectChangesSince returns every row, deleted or not, with
// updatedAt >= since. A zero watermark therefore returns the entire
// replica, which is what a first sync uploads.
func (s *Storage) CollectChangesSince(ctx context.Context, since int64) (*storage.ChangeSet, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	changes := &storage.ChangeSet{
		Lists:      []api.List{},
		Fields:     []api.Field{},
		Items:      []api.Item{},
		ItemValues: []api.ItemValue{},
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketLists).ForEach(func(_, data []byte) error {
			var l api.List
			if err := json.Unmarshal(data, &l); err != nil {
				return fmt.Errorf("failed to unmarshal list: %w", err)
			}
			if l.UpdatedAt >= since {
				changes.Lists = append(changes.Lists, l)
			}
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(bucketFields).ForEach(func(_, data []byte) error {
			var f api.Field
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("failed to unmarshal field: %w", err)
			}
			if f.UpdatedAt >= since {
				changes.Fields = append(changes.Fields, f)
			}
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(bucketItems).ForEach(func(_, data []byte) error {
			var it api.Item
			if err := json.Unmarshal(data, &it); err != nil {
				return fmt.Errorf("failed to unmarshal item: %w", err)
			}
			if it.UpdatedAt >= since {
				changes.Items = append(changes.Items, it)
			}
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(bucketValues).ForEach(func(_, data []byte) error {
			var v api.ItemValue
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("failed to unmarshal item value: %w", err)
			}
			if v.UpdatedAt >= since {
				changes.ItemValues = append(changes.ItemValues, v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}
