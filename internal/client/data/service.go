// Package data implements the client's local mutations: every edit lands in
// the replica immediately with a fresh updatedAt stamp, and sync pushes it
// out on the next cycle.
package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/internal/clock"
	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/pkg/api"
)

// Service applies local edits to the replica.
type Service struct {
	logger  *slog.Logger
	replica storage.ReplicaStorage
	clock   clock.Clock
	// onMutate, when set, is called after every committed edit. The CLI
	// wires it to the syncer's trigger so edits push out immediately.
	onMutate func()
}

// NewService creates a data service. onMutate may be nil.
func NewService(logger *slog.Logger, replica storage.ReplicaStorage, clk clock.Clock, onMutate func()) *Service {
	return &Service{
		logger:   logger,
		replica:  replica,
		clock:    clk,
		onMutate: onMutate,
	}
}

func (s *Service) mutated() {
	if s.onMutate != nil {
		s.onMutate()
	}
}

// CreateList creates a new list with a fresh id.
func (s *Service) CreateList(ctx context.Context, name string) (*api.List, error) {
	now := s.clock.NowMillis()
	list := &api.List{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.replica.SaveList(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to create list: %w", err)
	}

	s.logger.Debug("List created", "list_id", list.ID, "name", name)
	s.mutated()
	return list, nil
}

// RenameList changes a list's name.
func (s *Service) RenameList(ctx context.Context, id, name string) error {
	list, err := s.replica.GetList(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load list: %w", err)
	}

	list.Name = name
	list.UpdatedAt = s.clock.NowMillis()

	if err := s.replica.SaveList(ctx, list); err != nil {
		return fmt.Errorf("failed to rename list: %w", err)
	}

	s.mutated()
	return nil
}

// DeleteList tombstones a list. The row persists so the deletion propagates
// to other replicas.
func (s *Service) DeleteList(ctx context.Context, id string) error {
	list, err := s.replica.GetList(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load list: %w", err)
	}

	list.IsDeleted = true
	list.UpdatedAt = s.clock.NowMillis()

	if err := s.replica.SaveList(ctx, list); err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}

	s.mutated()
	return nil
}

// CreateField adds a column to a list. The column order is max(order)+1
// over the list's live fields.
func (s *Service) CreateField(ctx context.Context, listID, name, fieldType, fieldOptions, alignment string) (*api.Field, error) {
	ft, err := models.ParseFieldType(fieldType)
	if err != nil {
		return nil, err
	}

	if _, err := s.replica.GetList(ctx, listID); err != nil {
		return nil, fmt.Errorf("failed to load list: %w", err)
	}

	fields, err := s.replica.GetListFields(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	order := 0
	for _, f := range fields {
		if f.Order >= order {
			order = f.Order + 1
		}
	}

	now := s.clock.NowMillis()
	field := &api.Field{
		ID:           uuid.New().String(),
		ListID:       listID,
		Name:         name,
		FieldType:    string(ft),
		FieldOptions: fieldOptions,
		Order:        order,
		Alignment:    alignment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.replica.SaveField(ctx, field); err != nil {
		return nil, fmt.Errorf("failed to create field: %w", err)
	}

	s.logger.Debug("Field created", "field_id", field.ID, "list_id", listID, "type", ft, "order", order)
	s.mutated()
	return field, nil
}

// UpdateField updates a field's mutable attributes. Empty arguments leave
// the current value alone.
func (s *Service) UpdateField(ctx context.Context, id, name, fieldOptions, alignment string) error {
	field, err := s.findField(ctx, id)
	if err != nil {
		return err
	}

	if name != "" {
		field.Name = name
	}
	if fieldOptions != "" {
		field.FieldOptions = fieldOptions
	}
	if alignment != "" {
		field.Alignment = alignment
	}
	field.UpdatedAt = s.clock.NowMillis()

	if err := s.replica.SaveField(ctx, field); err != nil {
		return fmt.Errorf("failed to update field: %w", err)
	}

	s.mutated()
	return nil
}

// DeleteField tombstones a field.
func (s *Service) DeleteField(ctx context.Context, id string) error {
	field, err := s.findField(ctx, id)
	if err != nil {
		return err
	}

	field.IsDeleted = true
	field.UpdatedAt = s.clock.NowMillis()

	if err := s.replica.SaveField(ctx, field); err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}

	s.mutated()
	return nil
}

// CreateItem adds a row to a list.
func (s *Service) CreateItem(ctx context.Context, listID string) (*api.Item, error) {
	if _, err := s.replica.GetList(ctx, listID); err != nil {
		return nil, fmt.Errorf("failed to load list: %w", err)
	}

	now := s.clock.NowMillis()
	item := &api.Item{
		ID:        uuid.New().String(),
		ListID:    listID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.replica.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.mutated()
	return item, nil
}

// DeleteItem tombstones a row.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	item, err := s.findItem(ctx, id)
	if err != nil {
		return err
	}

	item.IsDeleted = true
	item.UpdatedAt = s.clock.NowMillis()

	if err := s.replica.SaveItem(ctx, item); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	s.mutated()
	return nil
}

// SetValue writes one cell. The value is validated against the field's
// type, and an existing row for the (item, field) pair is reused so the
// replica never grows duplicate value rows for one cell.
func (s *Service) SetValue(ctx context.Context, itemID, fieldID, value string) (*api.ItemValue, error) {
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	field, err := s.findField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if field.ListID != item.ListID {
		return nil, fmt.Errorf("field %s does not belong to the item's list", fieldID)
	}

	ft, err := models.ParseFieldType(field.FieldType)
	if err == nil {
		if verr := ft.ValidateValue(value, field.FieldOptions); verr != nil {
			return nil, verr
		}
	}
	// Unknown field types are stored as-is: the server treats them as
	// opaque and a newer client may understand them.

	now := s.clock.NowMillis()

	existing, err := s.replica.FindValue(ctx, itemID, fieldID)
	switch {
	case err == nil:
		existing.Value = value
		existing.UpdatedAt = now
	case errors.Is(err, storage.ErrNotFound):
		existing = &api.ItemValue{
			ID:        uuid.New().String(),
			ItemID:    itemID,
			FieldID:   fieldID,
			Value:     value,
			UpdatedAt: now,
		}
	default:
		return nil, fmt.Errorf("failed to look up value: %w", err)
	}

	if err := s.replica.SaveItemValue(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to save value: %w", err)
	}

	s.mutated()
	return existing, nil
}

// findField loads a field row by id even without knowing its list, by
// scanning the lists the replica knows.
func (s *Service) findField(ctx context.Context, id string) (*api.Field, error) {
	lists, err := s.replica.GetLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load lists: %w", err)
	}
	for _, l := range lists {
		fields, err := s.replica.GetListFields(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load fields: %w", err)
		}
		for i := range fields {
			if fields[i].ID == id {
				return &fields[i], nil
			}
		}
	}
	return nil, storage.ErrNotFound
}

// findItem loads an item row by id by scanning the known lists.
func (s *Service) findItem(ctx context.Context, id string) (*api.Item, error) {
	lists, err := s.replica.GetLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load lists: %w", err)
	}
	for _, l := range lists {
		items, err := s.replica.GetListItems(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load items: %w", err)
		}
		for i := range items {
			if items[i].ID == id {
				return &items[i], nil
			}
		}
	}
	return nil, storage.ErrNotFound
}
