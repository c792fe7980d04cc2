package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tabsync/tabsync/internal/clock"
	"github.com/tabsync/tabsync/pkg/api"
)

// ApplyAndDiff is the server merge engine. It upserts every incoming row in
// list, field, item, value order inside one transaction, then computes the
// outgoing delta for the client's watermark.
//
// Upserts overwrite all mutable columns unconditionally, keyed by id: the
// protocol is last-write-wins by client timestamp with no comparison against
// the stored row. A client with a stale clock can therefore overwrite newer
// server data. That trade-off is part of the protocol, not something this
// layer tries to correct.
func (s *Storage) ApplyAndDiff(ctx context.Context, req *api.SyncRequest, deviceID string) (resp *api.SyncResponse, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec := &eventRecorder{tx: tx, deviceID: deviceID, clock: s.clock}

	for i := range req.Lists {
		if err = s.upsertList(ctx, tx, rec, &req.Lists[i]); err != nil {
			return nil, fmt.Errorf("failed to upsert list %s: %w", req.Lists[i].ID, err)
		}
	}
	for i := range req.Fields {
		if err = s.upsertField(ctx, tx, rec, &req.Fields[i]); err != nil {
			return nil, fmt.Errorf("failed to upsert field %s: %w", req.Fields[i].ID, err)
		}
	}
	for i := range req.Items {
		if err = s.upsertItem(ctx, tx, rec, &req.Items[i]); err != nil {
			return nil, fmt.Errorf("failed to upsert item %s: %w", req.Items[i].ID, err)
		}
	}
	for i := range req.ItemValues {
		if err = s.upsertItemValue(ctx, tx, rec, &req.ItemValues[i]); err != nil {
			return nil, fmt.Errorf("failed to upsert item value %s: %w", req.ItemValues[i].ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync transaction: %w", err)
	}

	// The new watermark is captured once, after the writes. Rows written by
	// a concurrent sync between the commit above and the reads below may be
	// skipped by this client's next delta; the protocol accepts that gap.
	serverTimestamp := s.clock.NowMillis()

	resp, err = s.readDelta(ctx, req.LastSyncTimestamp)
	if err != nil {
		return nil, err
	}
	resp.ServerTimestamp = serverTimestamp

	return resp, nil
}

// eventRecorder appends one notification per applied row within the sync
// transaction.
type eventRecorder struct {
	tx       *sql.Tx
	deviceID string
	clock    clock.Clock
}

func (r *eventRecorder) record(ctx context.Context, eventType, entityType, entityID, listID string) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO notifications (id, device_id_origin, event_type, entity_type, entity_id, list_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), r.deviceID, eventType, entityType, entityID, listID, r.clock.NowMillis())
	if err != nil {
		return fmt.Errorf("failed to record change event: %w", err)
	}
	return nil
}

// eventFor picks the event kind for an applied row.
func eventFor(existed, deleted bool) string {
	switch {
	case deleted:
		return api.EventDeleted
	case !existed:
		return api.EventCreated
	default:
		return api.EventUpdated
	}
}

func rowExists(ctx context.Context, tx *sql.Tx, table, id string) (bool, error) {
	var exists int
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ?)", table)
	if err := tx.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s row: %w", table, err)
	}
	return exists == 1, nil
}

func (s *Storage) upsertList(ctx context.Context, tx *sql.Tx, rec *eventRecorder, l *api.List) error {
	existed, err := rowExists(ctx, tx, "lists", l.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lists (id, name, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted
	`, l.ID, l.Name, l.CreatedAt, l.UpdatedAt, boolToInt(l.IsDeleted))
	if err != nil {
		return err
	}

	return rec.record(ctx, eventFor(existed, l.IsDeleted), api.EntityList, l.ID, l.ID)
}

func (s *Storage) upsertField(ctx context.Context, tx *sql.Tx, rec *eventRecorder, f *api.Field) error {
	existed, err := rowExists(ctx, tx, "fields", f.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fields (id, list_id, name, field_type, field_options, field_order, alignment, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			list_id = excluded.list_id,
			name = excluded.name,
			field_type = excluded.field_type,
			field_options = excluded.field_options,
			field_order = excluded.field_order,
			alignment = excluded.alignment,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted
	`, f.ID, f.ListID, f.Name, f.FieldType, f.FieldOptions, f.Order, f.Alignment, f.CreatedAt, f.UpdatedAt, boolToInt(f.IsDeleted))
	if err != nil {
		return err
	}

	return rec.record(ctx, eventFor(existed, f.IsDeleted), api.EntityField, f.ID, f.ListID)
}

func (s *Storage) upsertItem(ctx context.Context, tx *sql.Tx, rec *eventRecorder, it *api.Item) error {
	existed, err := rowExists(ctx, tx, "items", it.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, list_id, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			list_id = excluded.list_id,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted
	`, it.ID, it.ListID, it.CreatedAt, it.UpdatedAt, boolToInt(it.IsDeleted))
	if err != nil {
		return err
	}

	return rec.record(ctx, eventFor(existed, it.IsDeleted), api.EntityItem, it.ID, it.ListID)
}

func (s *Storage) upsertItemValue(ctx context.Context, tx *sql.Tx, rec *eventRecorder, v *api.ItemValue) error {
	existed, err := rowExists(ctx, tx, "item_values", v.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO item_values (id, item_id, field_id, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			item_id = excluded.item_id,
			field_id = excluded.field_id,
			value = excluded.value,
			updated_at = excluded.updated_at
	`, v.ID, v.ItemID, v.FieldID, v.Value, v.UpdatedAt)
	if err != nil {
		return err
	}

	return rec.record(ctx, eventFor(existed, false), api.EntityItemValue, v.ID, "")
}

// readDelta computes the outgoing half of a sync.
//
// A zero watermark is a fresh client: it receives every live list, field and
// item but no tombstones, since it has nothing to reconcile against. Item
// values carry no delete flag, so all of them are sent. Any other watermark
// receives every row changed at or after it, tombstones included.
func (s *Storage) readDelta(ctx context.Context, since int64) (*api.SyncResponse, error) {
	resp := &api.SyncResponse{
		Lists:      []api.List{},
		Fields:     []api.Field{},
		Items:      []api.Item{},
		ItemValues: []api.ItemValue{},
	}

	initial := since == 0

	var err error
	if initial {
		resp.Lists, err = s.queryLists(ctx, "WHERE is_deleted = 0 ORDER BY created_at")
	} else {
		resp.Lists, err = s.queryLists(ctx, "WHERE updated_at >= ? ORDER BY created_at", since)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read list delta: %w", err)
	}

	if initial {
		resp.Fields, err = s.queryFields(ctx, "WHERE is_deleted = 0 ORDER BY field_order, created_at")
	} else {
		resp.Fields, err = s.queryFields(ctx, "WHERE updated_at >= ? ORDER BY field_order, created_at", since)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read field delta: %w", err)
	}

	if initial {
		resp.Items, err = s.queryItems(ctx, "WHERE is_deleted = 0 ORDER BY created_at")
	} else {
		resp.Items, err = s.queryItems(ctx, "WHERE updated_at >= ? ORDER BY created_at", since)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read item delta: %w", err)
	}

	if initial {
		resp.ItemValues, err = s.queryItemValues(ctx, "")
	} else {
		resp.ItemValues, err = s.queryItemValues(ctx, "WHERE updated_at >= ?", since)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read item value delta: %w", err)
	}

	return resp, nil
}
