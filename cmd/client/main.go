package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientapi "github.com/tabsync/tabsync/internal/client/api"
	"github.com/tabsync/tabsync/internal/client/cli"
	"github.com/tabsync/tabsync/internal/client/data"
	"github.com/tabsync/tabsync/internal/client/notify"
	"github.com/tabsync/tabsync/internal/client/storage/boltdb"
	"github.com/tabsync/tabsync/internal/client/syncer"
	"github.com/tabsync/tabsync/internal/client/ws"
	"github.com/tabsync/tabsync/internal/clock"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	serverURL := flag.String("server", envOr("TABSYNC_SERVER", "http://localhost:8080"), "Server URL")
	password := flag.String("password", os.Getenv("TABSYNC_PASSWORD"), "Server password")
	dbPath := flag.String("db", envOr("TABSYNC_CLIENT_DB", "tabsync-client.db"), "Path to local database")
	interval := flag.Duration("interval", 5*time.Second, "Sync interval for watch mode")
	noRealtime := flag.Bool("no-realtime", false, "Disable the websocket transport")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]
	args = args[1:]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Joining an authenticated server interactively: prompt when no
	// password was given any other way.
	if command == "join" && *password == "" {
		entered, err := cli.ReadPassword()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		*password = entered
	}

	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	deviceID, err := boltStorage.EnsureDeviceID(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read device id: %v\n", err)
		os.Exit(1)
	}

	apiClient := clientapi.NewClient(*serverURL, *password, deviceID)

	var realtime syncer.Transport
	if !*noRealtime {
		wsTransport := ws.NewTransport(logger, *serverURL, *password, deviceID)
		defer func() {
			_ = wsTransport.Close()
		}()
		realtime = wsTransport
	}

	syncService := syncer.NewService(logger, boltStorage, boltStorage, realtime, apiClient)
	dataService := data.NewService(logger, boltStorage, clock.NewSystem(), syncService.TriggerSync)
	notifyService := notify.NewService(logger, apiClient, boltStorage, deviceID)

	c := cli.New(apiClient, dataService, syncService, notifyService, boltStorage, boltStorage)

	if err := runCommand(ctx, c, command, args, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, c *cli.Cli, command string, args []string, interval time.Duration) error {
	switch command {
	case "join":
		return c.RunJoin(ctx)
	case "sync":
		return c.RunSync(ctx)
	case "watch":
		return c.RunWatch(ctx, interval)
	case "status":
		return c.RunStatus(ctx)
	case "notifications":
		return c.RunNotifications(ctx)
	case "lists":
		return c.RunLists(ctx)
	case "create-list":
		if len(args) != 1 {
			return fmt.Errorf("usage: create-list <name>")
		}
		return c.RunCreateList(ctx, args[0])
	case "rename-list":
		if len(args) != 2 {
			return fmt.Errorf("usage: rename-list <id> <name>")
		}
		return c.RunRenameList(ctx, args[0], args[1])
	case "delete-list":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete-list <id>")
		}
		return c.RunDeleteList(ctx, args[0])
	case "add-field":
		if len(args) < 3 || len(args) > 4 {
			return fmt.Errorf("usage: add-field <listId> <name> <type> [options]")
		}
		options := ""
		if len(args) == 4 {
			options = args[3]
		}
		return c.RunAddField(ctx, args[0], args[1], args[2], options)
	case "delete-field":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete-field <id>")
		}
		return c.RunDeleteField(ctx, args[0])
	case "add-item":
		if len(args) != 1 {
			return fmt.Errorf("usage: add-item <listId>")
		}
		return c.RunAddItem(ctx, args[0])
	case "delete-item":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete-item <id>")
		}
		return c.RunDeleteItem(ctx, args[0])
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: set <itemId> <fieldId> <value>")
		}
		return c.RunSet(ctx, args[0], args[1], args[2])
	case "show":
		if len(args) != 1 {
			return fmt.Errorf("usage: show <listId>")
		}
		return c.RunShow(ctx, args[0])
	default:
		cli.PrintUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printVersion() {
	fmt.Printf("tabsync client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
