package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/taskboard/internal/api"
	"github.com/mschirtzinger/taskboard/internal/config"
	"github.com/mschirtzinger/taskboard/internal/dashboard"
	"github.com/mschirtzinger/taskboard/internal/events"
	"github.com/mschirtzinger/taskboard/internal/lifecycle"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Run the HTTP API and live dashboard",
	Long: `Run the HTTP server: the JSON API under /api/, the live update stream at
/ws and a health probe at /health. Every change made through the API is
pushed to connected dashboards. The anchor config file is watched and
reloaded while the server runs.

Examples:
  tb serve
  tb serve --port 9090 --host 0.0.0.0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		// The service needs the notifier before the server exists, and the
		// server needs the service's API, so the hub is bound late.
		var hub *dashboard.Handler
		notify := events.NotifierFunc(func(e events.Event) {
			if hub != nil {
				hub.Notify(e)
			}
		})
		svc := newService(db, anchors, lifecycle.WithNotifier(notify))

		server := dashboard.NewServer(&dashboard.Config{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			API:             api.New(svc, logger),
			Stats:           svc.Stats,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Logger:          logger,
		})
		hub = dashboard.NewHandler(server, logger)

		fmt.Fprintf(os.Stderr, "%s Serving on http://%s (Ctrl+C to stop)\n", renderAccent("▶"), cfg.Server.Addr())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.Run(gctx)
		})
		if dir := filepath.Dir(anchors.Path()); anchors.Path() != "" && dirExists(dir) {
			g.Go(func() error {
				return anchors.Watch(gctx)
			})
		} else if anchors.Path() != "" {
			logger.Info().Str("path", anchors.Path()).Msg("anchor config directory missing; not watching")
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("host", "", "interface to bind")
	serveCmd.Flags().Int("port", 0, "port to listen on")
	if err := config.BindFlags(vp, serveCmd.Flags(), map[string]string{
		"server.host": "host",
		"server.port": "port",
	}); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(serveCmd)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

