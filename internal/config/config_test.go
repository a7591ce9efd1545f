package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvManifest, EnvBackend, EnvListen, EnvLogLevel, EnvLogFormat} {
		t.Setenv(k, "")
	}
}

// ==================== Load Tests ====================

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultManifestPath, cfg.ManifestPath)
	assert.Equal(t, store.BackendSQLite, cfg.Backend)
	assert.Equal(t, logging.FormatTint, cfg.LogFormat)
	assert.Equal(t, store.TableInventoryItems, cfg.Tables.Items)
	assert.Equal(t, models.Hash(4241085061), cfg.Categories.Trait)
	assert.Equal(t, ConfigFile, filepath.Base(cfg.Path()))
}

func TestLoad_WalksUp(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFile), []byte(`
manifest_path = "data/manifest.sqlite3"
backend = "bolt"
listen = ":9000"
watch = true
webhook_urls = ["http://hooks.local/reindex"]

[tables]
items = "Items"

[categories]
barrel = 11
trait = 33
`), 0644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Chdir(nested)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, store.BackendBolt, cfg.Backend)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.True(t, cfg.Watch)
	assert.Equal(t, []string{"http://hooks.local/reindex"}, cfg.WebhookURLs)
	assert.Equal(t, "Items", cfg.Tables.Items)
	// Unset keys keep their defaults
	assert.Equal(t, store.TablePlugSets, cfg.Tables.PlugSets)
	assert.Equal(t, models.Hash(11), cfg.Categories.Barrel)
	assert.Equal(t, models.Hash(33), cfg.Categories.Trait)
	assert.Equal(t, models.Hash(1288200359), cfg.Categories.Magazine)

	rootAbs, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(filepath.Dir(cfg.ResolvedManifestPath()))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rootAbs, "data"), gotDir)
}

func TestLoad_ExplicitPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`manifest_path = "/abs/manifest.db"`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/abs/manifest.db", cfg.ResolvedManifestPath())
	assert.Equal(t, path, cfg.Path())
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`backend = `), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(EnvManifest, "other.db")
	t.Setenv(EnvBackend, "bolt")
	t.Setenv(EnvListen, ":1234")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.ManifestPath))
	assert.Equal(t, "other.db", filepath.Base(cfg.ResolvedManifestPath()))
	assert.Equal(t, store.BackendBolt, cfg.Backend)
	assert.Equal(t, ":1234", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, logging.FormatJSON, cfg.LogFormat)
}

// ==================== Validate Tests ====================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad backend", func(c *Config) { c.Backend = "postgres" }, "invalid backend"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log_format"},
		{"negative rate", func(c *Config) { c.RequestsPerMinute = -1 }, "requests_per_minute"},
		{"bad table", func(c *Config) { c.Tables.PlugSets = "x; DROP TABLE y" }, "invalid table name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// ==================== Initialize Tests ====================

func TestInitialize(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Initialize(dir, "manifest.sqlite3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFile), cfg.Path())

	loaded, err := Load(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, "manifest.sqlite3", loaded.ManifestPath)
	assert.Equal(t, cfg.Categories, loaded.Categories)
	assert.Equal(t, cfg.Tables, loaded.Tables)
	assert.Equal(t, filepath.Join(dir, "manifest.sqlite3"), loaded.ResolvedManifestPath())

	_, err = Initialize(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestResolverTables(t *testing.T) {
	cfg := Default()
	cfg.Tables.Items = "Items"

	rt := cfg.ResolverTables()
	assert.Equal(t, "Items", rt.Items)
	assert.Equal(t, store.TableSocketTypes, rt.SocketTypes)
}
