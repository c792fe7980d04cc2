// Package cli implements the commands of the tabsync client binary.
package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	clientapi "github.com/tabsync/tabsync/internal/client/api"
	"github.com/tabsync/tabsync/internal/client/data"
	"github.com/tabsync/tabsync/internal/client/notify"
	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/internal/client/syncer"
)

// Cli bundles the services the commands operate on.
type Cli struct {
	apiClient   clientapi.ClientAPI
	dataService *data.Service
	syncService *syncer.Service
	notify      *notify.Service
	replica     storage.ReplicaStorage
	watermarks  storage.WatermarkStorage
}

// New creates a command runner.
func New(apiClient clientapi.ClientAPI, dataService *data.Service, syncService *syncer.Service, notifyService *notify.Service, replica storage.ReplicaStorage, watermarks storage.WatermarkStorage) *Cli {
	return &Cli{
		apiClient:   apiClient,
		dataService: dataService,
		syncService: syncService,
		notify:      notifyService,
		replica:     replica,
		watermarks:  watermarks,
	}
}

// syncNow pushes a fresh edit to the server right away. Failures are not
// fatal: the edit is already durable in the replica and the next cycle
// picks it up again.
func (c *Cli) syncNow(ctx context.Context) {
	if _, err := c.syncService.Sync(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "note: change saved locally, sync deferred: %s\n", clientapi.Describe(err))
	}
}

// PrintUsage prints the command summary.
func PrintUsage() {
	fmt.Println(`tabsync client

Usage: tabsync-client [flags] <command> [args]

Server:
  join                        Verify connectivity and password
  sync                        Run one sync cycle now
  watch                       Sync periodically until interrupted
  status                      Show watermark and pending changes
  notifications               Poll change events once

Lists:
  lists                       Show local lists
  create-list <name>          Create a list
  rename-list <id> <name>     Rename a list
  delete-list <id>            Delete a list

Fields and items:
  add-field <listId> <name> <type> [options]   Add a column
  delete-field <id>                            Delete a column
  add-item <listId>                            Add a row
  delete-item <id>                             Delete a row
  set <itemId> <fieldId> <value>               Write a cell
  show <listId>                                Print a list's table

Flags are described by 'tabsync-client -h'.`)
}

// ReadPassword prompts for the server password without echo.
func ReadPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Server password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
