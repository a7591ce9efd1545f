// Package config manages the d2armory.toml configuration file.
// It handles discovery, loading with defaults and environment overrides,
// saving, and initializing a fresh file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/resolver"
	"github.com/JackyBoizy/D2Armory/internal/store"
	"github.com/pelletier/go-toml/v2"
)

const (
	ConfigFile          = "d2armory.toml"
	DefaultManifestPath = "world_sql_content.sqlite3"
	DefaultListen       = "127.0.0.1:7777"
)

// Environment variables that override the file.
const (
	EnvManifest  = "D2ARMORY_MANIFEST"
	EnvBackend   = "D2ARMORY_BACKEND"
	EnvListen    = "D2ARMORY_LISTEN"
	EnvLogLevel  = "D2ARMORY_LOG_LEVEL"
	EnvLogFormat = "D2ARMORY_LOG_FORMAT"
)

// ErrNotFound is returned by FindConfig when no config file exists.
var ErrNotFound = errors.New("no " + ConfigFile + " found (or any parent up to root)")

// Tables names the manifest tables to read.
type Tables struct {
	Items       string `toml:"items"`
	SocketTypes string `toml:"socket_types"`
	PlugSets    string `toml:"plug_sets"`
}

// Config represents the d2armory configuration
type Config struct {
	ManifestPath      string              `toml:"manifest_path"`
	Backend           store.Backend       `toml:"backend"`
	Listen            string              `toml:"listen"`
	LogLevel          string              `toml:"log_level"`
	LogFormat         logging.Format      `toml:"log_format"`
	Watch             bool                `toml:"watch"`
	RequestsPerMinute int                 `toml:"requests_per_minute"`
	ResolveCacheSize  int                 `toml:"resolve_cache_size"`
	WebhookURLs       []string            `toml:"webhook_urls"`
	Tables            Tables              `toml:"tables"`
	Categories        resolver.Categories `toml:"categories"`

	path string // file the config was loaded from or will be saved to
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ManifestPath:      DefaultManifestPath,
		Backend:           store.BackendSQLite,
		Listen:            DefaultListen,
		LogLevel:          "info",
		LogFormat:         logging.FormatTint,
		RequestsPerMinute: 600,
		ResolveCacheSize:  1024,
		Tables: Tables{
			Items:       store.TableInventoryItems,
			SocketTypes: store.TableSocketTypes,
			PlugSets:    store.TablePlugSets,
		},
		Categories: resolver.DefaultCategories(),
	}
}

// FindConfig finds d2armory.toml by walking up from the current directory
func FindConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, ConfigFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load loads the configuration. An explicit path must exist; otherwise the
// file is discovered, and defaults are used when there is none. Environment
// overrides are applied last.
func Load(explicit string) (*Config, error) {
	cfg := Default()

	path := explicit
	if path == "" {
		found, err := FindConfig()
		switch {
		case errors.Is(err, ErrNotFound):
			cwd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			cfg.path = filepath.Join(cwd, ConfigFile)
			cfg.applyEnv()
			return cfg, cfg.Validate()
		case err != nil:
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.path = abs
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvManifest); v != "" {
		// Relative to the working directory, not the config file
		if abs, err := filepath.Abs(v); err == nil {
			v = abs
		}
		c.ManifestPath = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = store.Backend(v)
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = logging.Format(v)
	}
}

// Validate checks the enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Backend {
	case store.BackendSQLite, store.BackendBolt:
	default:
		return fmt.Errorf("invalid backend %q (want %s or %s)", c.Backend, store.BackendSQLite, store.BackendBolt)
	}
	switch c.LogFormat {
	case logging.FormatTint, logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be >= 0, got %d", c.RequestsPerMinute)
	}
	for _, t := range []string{c.Tables.Items, c.Tables.SocketTypes, c.Tables.PlugSets} {
		if err := store.ValidateTable(t); err != nil {
			return err
		}
	}
	return nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(c.path, data, 0644)
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.path
}

// ResolvedManifestPath returns the manifest path. Relative paths are taken
// relative to the config file's directory.
func (c *Config) ResolvedManifestPath() string {
	if c.ManifestPath == "" || filepath.IsAbs(c.ManifestPath) || c.path == "" {
		return c.ManifestPath
	}
	return filepath.Join(filepath.Dir(c.path), c.ManifestPath)
}

// ResolverTables converts the table section for the resolver.
func (c *Config) ResolverTables() resolver.Tables {
	return resolver.Tables{
		Items:       c.Tables.Items,
		SocketTypes: c.Tables.SocketTypes,
		PlugSets:    c.Tables.PlugSets,
	}
}

// Initialize writes a default d2armory.toml into dir
func Initialize(dir, manifestPath string) (*Config, error) {
	path := filepath.Join(dir, ConfigFile)

	// Check if already initialized
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := Default()
	if manifestPath != "" {
		cfg.ManifestPath = manifestPath
	}
	cfg.path = path

	if err := cfg.Save(); err != nil {
		return nil, err
	}

	return cfg, nil
}
