// Package engine is the query API the CLI and HTTP server call: search,
// full-record lookup, option resolution and reindex over one record store.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/manifest"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/query"
	"github.com/JackyBoizy/D2Armory/internal/resolver"
	"github.com/JackyBoizy/D2Armory/internal/store"
)

// ErrTablesUnsupported is returned by Tables when the store cannot list tables.
var ErrTablesUnsupported = errors.New("store cannot list tables")

// Config configures an Engine. Zero values select the defaults.
type Config struct {
	Tables          resolver.Tables
	Categories      *resolver.Categories
	ResultCacheSize *int
	Logger          *slog.Logger

	// OnReindex is called once per snapshot published by Reindex.
	OnReindex func(manifest.Stats)
}

// Engine wires the indexer, query service and resolver together.
type Engine struct {
	store    store.RecordStore
	indexer  *manifest.Indexer
	query    *query.Service
	resolver *resolver.Resolver
	logger   *slog.Logger

	onReindex func(manifest.Stats)
	notified  atomic.Uint64 // last generation passed to onReindex
}

// New creates an Engine over st. Nothing is read until Load.
func New(st store.RecordStore, cfg Config) *Engine {
	logger := logging.Default(cfg.Logger)

	tables := resolver.DefaultTables()
	if cfg.Tables.Items != "" {
		tables.Items = cfg.Tables.Items
	}
	if cfg.Tables.SocketTypes != "" {
		tables.SocketTypes = cfg.Tables.SocketTypes
	}
	if cfg.Tables.PlugSets != "" {
		tables.PlugSets = cfg.Tables.PlugSets
	}

	indexerOpts := []manifest.Option{
		manifest.WithLogger(logger),
		manifest.WithTable(tables.Items),
	}
	if cfg.ResultCacheSize != nil {
		indexerOpts = append(indexerOpts, manifest.WithResultCacheSize(*cfg.ResultCacheSize))
	}
	resolverOpts := []resolver.Option{
		resolver.WithLogger(logger),
		resolver.WithTables(tables),
	}
	if cfg.Categories != nil {
		resolverOpts = append(resolverOpts, resolver.WithCategories(*cfg.Categories))
	}

	x := manifest.New(st, indexerOpts...)
	return &Engine{
		store:     st,
		indexer:   x,
		query:     query.NewService(x),
		resolver:  resolver.New(st, resolverOpts...),
		logger:    logger.With("component", "engine"),
		onReindex: cfg.OnReindex,
	}
}

// Load builds the first snapshot.
func (e *Engine) Load(ctx context.Context) error {
	return e.indexer.Load(ctx)
}

// Reindex rebuilds the snapshot. On failure the previous one stays active.
func (e *Engine) Reindex(ctx context.Context) error {
	if err := e.indexer.Reindex(ctx); err != nil {
		return err
	}
	if e.onReindex != nil {
		stats := e.Stats()
		if e.advanceNotified(stats.Generation) {
			e.onReindex(stats)
		}
	}
	return nil
}

// advanceNotified records gen as reported. It fails for a generation that was
// already reported or is older than one that was, so coalesced callers report
// once and late finishers never report backwards.
func (e *Engine) advanceNotified(gen uint64) bool {
	for {
		old := e.notified.Load()
		if gen <= old {
			return false
		}
		if e.notified.CompareAndSwap(old, gen) {
			return true
		}
	}
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool {
	return e.indexer.Ready()
}

// Stats describes the active snapshot.
func (e *Engine) Stats() manifest.Stats {
	return e.indexer.Snapshot().Stats()
}

// Search lists items matching opts.
func (e *Engine) Search(opts query.Options) query.Result {
	return e.query.Search(opts)
}

// GetFull returns the full definition for hash.
func (e *Engine) GetFull(hash models.Hash) (*models.ItemDefinition, bool) {
	return e.query.GetFull(hash)
}

// ResolveOptions returns the option columns of the item with the given hash.
// It reports false when the item is not indexed. Results are cached per
// snapshot, so a reindex invalidates them.
func (e *Engine) ResolveOptions(ctx context.Context, hash models.Hash) ([]models.ResolvedColumn, bool) {
	snap := e.indexer.Snapshot()
	item, ok := snap.Get(hash)
	if !ok {
		return nil, false
	}

	cache := snap.Results()
	if cols, ok := cache.Get(hash); ok {
		return cols, true
	}

	cols, report := e.resolver.Resolve(ctx, snap, item)
	// Don't cache results degraded by store failures or cancellation
	if report.StoreErrors == 0 && ctx.Err() == nil {
		cache.Put(hash, cols)
	}
	return cols, true
}

// Tables lists the tables of the underlying store.
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	lister, ok := e.store.(store.TableLister)
	if !ok {
		return nil, ErrTablesUnsupported
	}
	return lister.Tables(ctx)
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}
