// Command tb is the task board: a kanban store for humans and coding agents
// with a live dashboard, a JSON API and an MCP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/taskboard/internal/anchor"
	"github.com/mschirtzinger/taskboard/internal/config"
	"github.com/mschirtzinger/taskboard/internal/lifecycle"
	"github.com/mschirtzinger/taskboard/internal/logging"
	"github.com/mschirtzinger/taskboard/internal/store"
)

// Version is set at build time.
var Version = "dev"

var (
	vp         = config.New()
	cfg        *config.Config
	logger     = zerolog.Nop()
	logCloser  io.Closer
	configFile string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "tb",
	Short:         "Task board for humans and coding agents",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(vp, configFile)
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		quiet, _ := cmd.Flags().GetBool("quiet")
		logger, logCloser, err = logging.New(logging.Options{
			Level:      cfg.Log.Level,
			Verbose:    verbose,
			Quiet:      quiet,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		if err != nil {
			return err
		}
		checkNoColor()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Working With Tasks:"},
		&cobra.Group{ID: "server", Title: "Servers:"},
		&cobra.Group{ID: "data", Title: "Data:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./taskboard.yaml, then ~/.taskboard/taskboard.yaml)")
	flags.String("db", "", "database path or libsql:// URL")
	flags.String("log-file", "", "also write logs to this file")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.BoolP("quiet", "q", false, "only log warnings and errors")
	flags.BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	if err := config.BindFlags(vp, flags, map[string]string{
		"database.dsn": "db",
		"log.file":     "log-file",
	}); err != nil {
		panic(err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDB opens the configured store. The caller closes it.
func openDB(ctx context.Context) (*store.DB, error) {
	db, err := store.OpenContext(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.DSN, err)
	}
	return db, nil
}

// newService builds the lifecycle service with the configured anchor rules.
func newService(db *store.DB, anchors lifecycle.AnchorConfigSource, opts ...lifecycle.Option) *lifecycle.Service {
	base := []lifecycle.Option{
		lifecycle.WithLogger(logger),
		lifecycle.WithResolver(anchor.NewResolver(cfg.Workspace.Root)),
		lifecycle.WithAnchorConfig(anchors),
	}
	return lifecycle.New(db, append(base, opts...)...)
}

func loadAnchors() (*anchor.Loader, error) {
	return anchor.NewLoader(cfg.Anchors.File,
		anchor.WithDebounce(cfg.Anchors.Debounce),
		anchor.WithLogger(logger),
	)
}

// withService opens the store, builds a service and runs fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *lifecycle.Service) error) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	anchors, err := loadAnchors()
	if err != nil {
		return err
	}
	return fn(ctx, newService(db, anchors))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
