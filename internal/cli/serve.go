package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/JackyBoizy/D2Armory/internal/server"
	"github.com/JackyBoizy/D2Armory/internal/watch"
	"github.com/spf13/cobra"
)

var (
	serveListen string
	serveWatch  bool
	serveRPM    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser API over HTTP",
	Long: `Index the manifest and serve the browser API.

With --watch the manifest file is watched and reindexed after it changes.
A failed reindex keeps the previous index serving.

Examples:
  d2armory serve
  d2armory serve --listen 0.0.0.0:7777 --watch
  d2armory serve --manifest ./world_sql_content.sqlite3 --rpm 0`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", "", "Listen address (host:port, overrides config)")
	f.BoolVar(&serveWatch, "watch", false, "Reindex when the manifest file changes (overrides config)")
	f.IntVar(&serveRPM, "rpm", 0, "Requests per minute per client, 0 disables (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) {
	if err := serve(cmd); err != nil {
		exitError("%v", err)
	}
}

func serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := initIndexedContext(cmd)
	defer c.Close()

	cfg := c.Config
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = serveListen
	}
	if flags.Changed("watch") {
		cfg.Watch = serveWatch
	}
	if flags.Changed("rpm") {
		cfg.RequestsPerMinute = serveRPM
	}

	stats := c.Engine.Stats()
	c.Logger.Info("manifest indexed",
		"path", cfg.ResolvedManifestPath(),
		"items", stats.Indexed,
		"duration", stats.Duration,
	)

	if cfg.Watch {
		w := watch.New(c.Engine, watch.Config{Path: cfg.ResolvedManifestPath(), Logger: c.Logger})
		if err := w.Start(ctx); err != nil {
			c.Logger.Error("failed to watch manifest", "error", err)
		} else {
			defer w.Close()
		}
	}

	h, cleanup := server.Handler(c.Engine, &server.Config{RequestsPerMinute: cfg.RequestsPerMinute}, c.Logger)
	defer cleanup()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	return server.Serve(ctx, ln, h, c.Logger)
}
