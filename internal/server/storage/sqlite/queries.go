package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tabsync/tabsync/internal/server/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

const (
	selectLists      = "SELECT id, name, created_at, updated_at, is_deleted FROM lists "
	selectFields     = "SELECT id, list_id, name, field_type, field_options, field_order, alignment, created_at, updated_at, is_deleted FROM fields "
	selectItems      = "SELECT id, list_id, created_at, updated_at, is_deleted FROM items "
	selectItemValues = "SELECT id, item_id, field_id, value, updated_at FROM item_values "
)

func (s *Storage) queryLists(ctx context.Context, clause string, args ...any) (lists []api.List, err error) {
	rows, err := s.db.QueryContext(ctx, selectLists+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer closeRows(rows, &err)

	lists = []api.List{}
	for rows.Next() {
		var l api.List
		var deleted int
		if err = rows.Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		l.IsDeleted = intToBool(deleted)
		lists = append(lists, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return lists, nil
}

func (s *Storage) queryFields(ctx context.Context, clause string, args ...any) (fields []api.Field, err error) {
	rows, err := s.db.QueryContext(ctx, selectFields+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer closeRows(rows, &err)

	fields = []api.Field{}
	for rows.Next() {
		var f api.Field
		var deleted int
		if err = rows.Scan(&f.ID, &f.ListID, &f.Name, &f.FieldType, &f.FieldOptions, &f.Order, &f.Alignment, &f.CreatedAt, &f.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		f.IsDeleted = intToBool(deleted)
		fields = append(fields, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return fields, nil
}

func (s *Storage) queryItems(ctx context.Context, clause string, args ...any) (items []api.Item, err error) {
	rows, err := s.db.QueryContext(ctx, selectItems+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer closeRows(rows, &err)

	items = []api.Item{}
	for rows.Next() {
		var it api.Item
		var deleted int
		if err = rows.Scan(&it.ID, &it.ListID, &it.CreatedAt, &it.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.IsDeleted = intToBool(deleted)
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return items, nil
}

func (s *Storage) queryItemValues(ctx context.Context, clause string, args ...any) (values []api.ItemValue, err error) {
	rows, err := s.db.QueryContext(ctx, selectItemValues+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query item values: %w", err)
	}
	defer closeRows(rows, &err)

	values = []api.ItemValue{}
	for rows.Next() {
		var v api.ItemValue
		if err = rows.Scan(&v.ID, &v.ItemID, &v.FieldID, &v.Value, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item value: %w", err)
		}
		values = append(values, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return values, nil
}

// GetLists returns all live lists, oldest first.
func (s *Storage) GetLists(ctx context.Context) ([]api.List, error) {
	return s.queryLists(ctx, "WHERE is_deleted = 0 ORDER BY created_at")
}

// GetList returns one live list by id.
// Returns storage.ErrNotFound for missing or deleted lists.
func (s *Storage) GetList(ctx context.Context, id string) (*api.List, error) {
	var l api.List
	var deleted int
	err := s.db.QueryRowContext(ctx, selectLists+"WHERE id = ?", id).
		Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	l.IsDeleted = intToBool(deleted)
	if l.IsDeleted {
		return nil, storage.ErrNotFound
	}
	return &l, nil
}

// GetListFields returns the live fields of a list in column order.
func (s *Storage) GetListFields(ctx context.Context, listID string) ([]api.Field, error) {
	return s.queryFields(ctx, "WHERE list_id = ? AND is_deleted = 0 ORDER BY field_order, created_at", listID)
}

// GetListItems returns the live items of a list, oldest first.
func (s *Storage) GetListItems(ctx context.Context, listID string) ([]api.Item, error) {
	return s.queryItems(ctx, "WHERE list_id = ? AND is_deleted = 0 ORDER BY created_at", listID)
}

// GetItemValues returns the values of one item.
func (s *Storage) GetItemValues(ctx context.Context, itemID string) ([]api.ItemValue, error) {
	return s.queryItemValues(ctx, "WHERE item_id = ? ORDER BY updated_at", itemID)
}

func closeRows(rows *sql.Rows, err *error) {
	if cerr := rows.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
