package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/taskboard/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	GroupID: "server",
	Short:   "Serve the board to agents over MCP (stdio)",
	Long: `Run a Model Context Protocol server on stdin/stdout so coding agents can
list, read, create and move tasks and ask where to work on them.

Logs go to stderr (and --log-file); stdout carries only protocol traffic.

Example client entry:
  {"command": "tb", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		anchors, err := loadAnchors()
		if err != nil {
			return err
		}
		server := mcp.NewServer(newService(db, anchors), Version, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			// The client closing stdin ends the session and the watcher with it.
			defer cancel()
			return server.Run(gctx)
		})
		if anchors.Path() != "" && dirExists(filepath.Dir(anchors.Path())) {
			g.Go(func() error {
				return anchors.Watch(gctx)
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
