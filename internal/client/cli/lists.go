package cli

import (
	"context"
	"fmt"
	"strings"
)

// RunLists prints the local lists.
func (c *Cli) RunLists(ctx context.Context) error {
	lists, err := c.replica.GetLists(ctx)
	if err != nil {
		return fmt.Errorf("failed to load lists: %w", err)
	}

	if len(lists) == 0 {
		fmt.Println("No lists")
		return nil
	}
	for _, l := range lists {
		fmt.Printf("%s  %s\n", l.ID, l.Name)
	}
	return nil
}

// RunCreateList creates a list.
func (c *Cli) RunCreateList(ctx context.Context, name string) error {
	list, err := c.dataService.CreateList(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("Created list %s (%s)\n", list.Name, list.ID)
	c.syncNow(ctx)
	return nil
}

// RunRenameList renames a list.
func (c *Cli) RunRenameList(ctx context.Context, id, name string) error {
	if err := c.dataService.RenameList(ctx, id, name); err != nil {
		return err
	}
	fmt.Println("Renamed")
	c.syncNow(ctx)
	return nil
}

// RunDeleteList deletes a list.
func (c *Cli) RunDeleteList(ctx context.Context, id string) error {
	if err := c.dataService.DeleteList(ctx, id); err != nil {
		return err
	}
	fmt.Println("Deleted")
	c.syncNow(ctx)
	return nil
}

// RunAddField adds a column to a list.
func (c *Cli) RunAddField(ctx context.Context, listID, name, fieldType, fieldOptions string) error {
	field, err := c.dataService.CreateField(ctx, listID, name, fieldType, fieldOptions, "")
	if err != nil {
		return err
	}
	fmt.Printf("Added field %s (%s), column %d\n", field.Name, field.ID, field.Order)
	c.syncNow(ctx)
	return nil
}

// RunDeleteField deletes a column.
func (c *Cli) RunDeleteField(ctx context.Context, id string) error {
	if err := c.dataService.DeleteField(ctx, id); err != nil {
		return err
	}
	fmt.Println("Deleted")
	c.syncNow(ctx)
	return nil
}

// RunAddItem adds a row to a list.
func (c *Cli) RunAddItem(ctx context.Context, listID string) error {
	item, err := c.dataService.CreateItem(ctx, listID)
	if err != nil {
		return err
	}
	fmt.Printf("Added item %s\n", item.ID)
	c.syncNow(ctx)
	return nil
}

// RunDeleteItem deletes a row.
func (c *Cli) RunDeleteItem(ctx context.Context, id string) error {
	if err := c.dataService.DeleteItem(ctx, id); err != nil {
		return err
	}
	fmt.Println("Deleted")
	c.syncNow(ctx)
	return nil
}

// RunSet writes a cell.
func (c *Cli) RunSet(ctx context.Context, itemID, fieldID, value string) error {
	if _, err := c.dataService.SetValue(ctx, itemID, fieldID, value); err != nil {
		return err
	}
	fmt.Println("Set")
	c.syncNow(ctx)
	return nil
}

// RunShow prints a list as a table: one row per item, one column per field.
func (c *Cli) RunShow(ctx context.Context, listID string) error {
	list, err := c.replica.GetList(ctx, listID)
	if err != nil {
		return fmt.Errorf("failed to load list: %w", err)
	}
	fields, err := c.replica.GetListFields(ctx, listID)
	if err != nil {
		return fmt.Errorf("failed to load fields: %w", err)
	}
	items, err := c.replica.GetListItems(ctx, listID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}

	fmt.Printf("%s\n", list.Name)

	header := make([]string, 0, len(fields)+1)
	header = append(header, "item")
	for _, f := range fields {
		header = append(header, f.Name)
	}
	fmt.Println(strings.Join(header, "\t"))

	for _, it := range items {
		values, err := c.replica.GetItemValues(ctx, it.ID)
		if err != nil {
			return fmt.Errorf("failed to load values: %w", err)
		}
		byField := make(map[string]string, len(values))
		for _, v := range values {
			byField[v.FieldID] = v.Value
		}

		row := make([]string, 0, len(fields)+1)
		row = append(row, shortID(it.ID))
		for _, f := range fields {
			row = append(row, byField[f.ID])
		}
		fmt.Println(strings.Join(row, "\t"))
	}
	return nil
}

// shortID trims a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
