// Package cli implements the command-line interface for d2armory.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JackyBoizy/D2Armory/internal/config"
	"github.com/JackyBoizy/D2Armory/internal/engine"
	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/notify"
	"github.com/JackyBoizy/D2Armory/internal/store"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath   string
	manifestPath string
	backendName  string
	logLevel     string
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config   *config.Config
	Store    store.RecordStore
	Engine   *engine.Engine
	Notifier *notify.WebhookNotifier
	Logger   *slog.Logger
}

// Close waits for pending webhooks and releases resources held by cmdContext
func (c *cmdContext) Close() {
	c.Notifier.Wait()
	if c.Engine != nil {
		c.Engine.Close()
	}
}

// loadConfig loads the config file and applies the global flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with the global flags that were set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("manifest") {
		abs, err := filepath.Abs(manifestPath)
		if err != nil {
			return err
		}
		cfg.ManifestPath = abs
	}
	if flags.Changed("backend") {
		cfg.Backend = store.Backend(backendName)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg.Validate()
}

// engineConfig maps the file settings onto the engine.
func engineConfig(cfg *config.Config, notifier *notify.WebhookNotifier, logger *slog.Logger) engine.Config {
	categories := cfg.Categories
	cacheSize := cfg.ResolveCacheSize
	return engine.Config{
		Tables:          cfg.ResolverTables(),
		Categories:      &categories,
		ResultCacheSize: &cacheSize,
		Logger:          logger,
		OnReindex:       notifier.NotifyReindex,
	}
}

// initContext loads config and opens the manifest store (no index yet)
func initContext(cmd *cobra.Command) *cmdContext {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitError("%v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	path := cfg.ResolvedManifestPath()
	st, err := store.OpenFile(cfg.Backend, path)
	if err != nil {
		exitError("failed to open manifest %s: %v", path, err)
	}

	notifier := notify.NewWebhookNotifier(&notify.WebhookConfig{URLs: cfg.WebhookURLs}, logger)
	return &cmdContext{
		Config:   cfg,
		Store:    st,
		Engine:   engine.New(st, engineConfig(cfg, notifier, logger)),
		Notifier: notifier,
		Logger:   logger,
	}
}

// initIndexedContext opens the store and builds the index
func initIndexedContext(cmd *cobra.Command) *cmdContext {
	c := initContext(cmd)

	if err := c.Engine.Load(cmd.Context()); err != nil {
		c.Close()
		exitError("failed to index manifest: %v", err)
	}

	return c
}

var rootCmd = &cobra.Command{
	Use:   "d2armory",
	Short: "Destiny 2 manifest browser",
	Long: `d2armory indexes a Destiny 2 manifest database and answers item searches
and weapon perk lookups from the command line or over HTTP.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: "+config.ConfigFile+" in this or a parent directory)")
	pf.StringVar(&manifestPath, "manifest", "", "Manifest database path (overrides config)")
	pf.StringVar(&backendName, "backend", "", "Manifest backend: sqlite or bolt (overrides config)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(exportCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// parseHashArg parses a hash argument or exits.
func parseHashArg(arg string) models.Hash {
	hash, err := models.ParseHash(arg)
	if err != nil {
		exitError("%v", err)
	}
	return hash
}
