package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientapi "github.com/tabsync/tabsync/internal/client/api"
)

// RunJoin verifies the server before first use: connectivity via the open
// /health endpoint, then the password via an empty sync. Each failure mode
// gets its own message; this is one of the few places sync errors must be
// visible.
func (c *Cli) RunJoin(ctx context.Context) error {
	health, err := c.apiClient.Health(ctx)
	if err != nil {
		return fmt.Errorf("server unreachable: %s", clientapi.Describe(err))
	}
	fmt.Printf("Server is %s (server time %d)\n", health.Status, health.Timestamp)

	if _, err := c.syncService.Sync(ctx); err != nil {
		if errors.Is(err, clientapi.ErrUnauthorized) {
			return fmt.Errorf("wrong password: %s", clientapi.Describe(err))
		}
		return fmt.Errorf("server validation failed: %s", clientapi.Describe(err))
	}

	fmt.Println("Joined server, local replica is up to date")
	return nil
}

// RunSync is the manual refresh: one cycle with errors surfaced distinctly.
func (c *Cli) RunSync(ctx context.Context) error {
	result, err := c.syncService.Sync(ctx)
	if err != nil {
		return fmt.Errorf("%s", clientapi.Describe(err))
	}

	fmt.Printf("Synced: pushed %d, pulled %d rows", result.Pushed, result.Pulled)
	if result.DroppedValues > 0 {
		fmt.Printf(", dropped %d orphaned values", result.DroppedValues)
	}
	if result.UsedFallback {
		fmt.Print(" (via HTTP fallback)")
	}
	fmt.Println()
	return nil
}

// RunWatch syncs on the given interval and prints incoming change events
// until the context is canceled.
func (c *Cli) RunWatch(ctx context.Context, interval time.Duration) error {
	fmt.Printf("Watching, sync every %s (Ctrl-C to stop)\n", interval)

	go c.syncService.Run(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			events, err := c.notify.Poll(ctx)
			if err != nil {
				// Best effort side channel; keep watching.
				continue
			}
			for _, e := range events {
				fmt.Printf("event: %s %s %s (list %s)\n", e.EventType, e.EntityType, e.EntityID, e.ListID)
			}
		}
	}
}

// RunStatus shows the watermark and how many rows await upload.
func (c *Cli) RunStatus(ctx context.Context) error {
	watermark, err := c.watermarks.GetLastSyncTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	changes, err := c.replica.CollectChangesSince(ctx, watermark)
	if err != nil {
		return fmt.Errorf("failed to collect pending changes: %w", err)
	}

	pending := len(changes.Lists) + len(changes.Fields) + len(changes.Items) + len(changes.ItemValues)

	if watermark == 0 {
		fmt.Println("Never synced")
	} else {
		fmt.Printf("Last sync watermark: %d\n", watermark)
	}
	fmt.Printf("Pending rows: %d\n", pending)
	return nil
}

// RunNotifications polls the side channel once.
func (c *Cli) RunNotifications(ctx context.Context) error {
	events, err := c.notify.Poll(ctx)
	if err != nil {
		return fmt.Errorf("%s", clientapi.Describe(err))
	}

	if len(events) == 0 {
		fmt.Println("No new events")
		return nil
	}
	for _, e := range events {
		fmt.Printf("%s %s %s (list %s)\n", e.EventType, e.EntityType, e.EntityID, e.ListID)
	}
	return nil
}
