// Package manifest builds the in-memory index over the manifest's item table.
//
// An Indexer reads every row once, decodes it, and publishes the result as
// an immutable Snapshot through a single atomic pointer swap. Readers grab
// the current snapshot and never see a half-built one; a reindex replaces it
// wholesale.
package manifest

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

// DefaultResultCacheSize bounds the per-snapshot resolution cache.
const DefaultResultCacheSize = 1024

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Indexer) { x.logger = logger }
}

// WithTable overrides the item table name.
func WithTable(table string) Option {
	return func(x *Indexer) { x.table = table }
}

// WithResultCacheSize bounds the resolution cache of each snapshot. Zero
// disables caching.
func WithResultCacheSize(n int) Option {
	return func(x *Indexer) { x.cacheSize = n }
}

// WithWorkers sets the number of decode goroutines.
func WithWorkers(n int) Option {
	return func(x *Indexer) { x.workers = n }
}

// Indexer owns the active Snapshot.
type Indexer struct {
	store     store.RecordStore
	table     string
	cacheSize int
	workers   int
	logger    *slog.Logger

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64

	// Reindex requests are numbered; a rebuild covers every request issued
	// before it started reading.
	requests atomic.Uint64
	mu       sync.Mutex
	covered  uint64
	lastErr  error
}

// New creates an Indexer. The initial snapshot is empty until Load succeeds.
func New(st store.RecordStore, opts ...Option) *Indexer {
	x := &Indexer{
		store:     st,
		table:     store.TableInventoryItems,
		cacheSize: DefaultResultCacheSize,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.workers < 1 {
		x.workers = 1
	}
	x.logger = logging.Default(x.logger).With("component", "indexer")
	empty := newSnapshot(0, x.cacheSize)
	empty.stats.Table = x.table
	x.current.Store(empty)
	return x
}

// Snapshot returns the active snapshot. It is never nil.
func (x *Indexer) Snapshot() *Snapshot {
	return x.current.Load()
}

// Ready reports whether at least one load has succeeded.
func (x *Indexer) Ready() bool {
	return x.current.Load().stats.Generation > 0
}

// Load builds and publishes the first snapshot.
func (x *Indexer) Load(ctx context.Context) error {
	return x.Reindex(ctx)
}

// Reindex rebuilds the index from the store and swaps it in atomically.
// Concurrent calls are serialized; a call that arrives while a rebuild is
// waiting or running may share the result of the next rebuild that starts
// after it. On failure the previous snapshot stays active and a *LoadError is
// returned. A rebuild aborted by its caller's context covers nobody else, so
// waiting callers rebuild under their own context.
func (x *Indexer) Reindex(ctx context.Context) error {
	ticket := x.requests.Add(1)

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.covered >= ticket {
		return x.lastErr
	}

	covers := x.requests.Load()
	src, reopened, err := x.source()
	if err != nil {
		x.covered, x.lastErr = covers, err
		x.logger.Error("reindex failed", "table", x.table, "error", err)
		return err
	}

	snap, err := x.build(ctx, src)
	if err != nil {
		if reopened != nil {
			reopened.Close()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			x.logger.Warn("reindex cancelled", "table", x.table, "error", ctxErr)
			return ctxErr
		}
		x.covered, x.lastErr = covers, err
		x.logger.Error("reindex failed", "table", x.table, "error", err)
		return err
	}

	if reopened != nil {
		if err := x.store.(store.Reopener).Swap(reopened); err != nil {
			x.logger.Warn("failed to close replaced manifest", "error", err)
		}
	}
	x.covered, x.lastErr = covers, nil
	x.current.Store(snap)
	s := snap.stats
	x.logger.Info("manifest indexed",
		"generation", s.Generation,
		"items", s.Indexed,
		"rows", s.Rows,
		"skipped_decode", s.SkippedDecode,
		"skipped_no_hash", s.SkippedNoHash,
		"duplicates", s.Duplicates,
		"duration", s.Duration,
	)
	return nil
}

type decodedRow struct {
	item   *models.ItemDefinition
	folded string
	err    error
}

// source picks the store a rebuild reads from. Once a snapshot exists, a
// reopenable store is opened again so a manifest replaced on disk is seen.
// The fresh handle is returned separately and only installed on success.
func (x *Indexer) source() (store.RecordStore, store.RecordStore, error) {
	r, ok := x.store.(store.Reopener)
	if !ok || !x.Ready() {
		return x.store, nil, nil
	}
	fresh, err := r.Reopen()
	if err != nil {
		return nil, nil, &LoadError{Table: x.table, Err: err}
	}
	return fresh, fresh, nil
}

func (x *Indexer) build(ctx context.Context, src store.RecordStore) (*Snapshot, error) {
	start := time.Now()

	rows, err := src.FetchAll(ctx, x.table)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &LoadError{Table: x.table, Err: err}
	}

	decoded, err := x.decodeRows(ctx, rows)
	if err != nil {
		return nil, err
	}

	snap := newSnapshot(len(rows), x.cacheSize)
	stats := Stats{Table: x.table, Rows: len(rows)}
	for _, d := range decoded {
		switch {
		case errors.Is(d.err, models.ErrNoHash):
			stats.SkippedNoHash++
		case d.err != nil:
			stats.SkippedDecode++
		default:
			if snap.put(d.item, d.folded) {
				stats.Duplicates++
			}
		}
	}

	stats.Indexed = snap.Len()
	stats.Generation = x.generation.Add(1)
	stats.LoadedAt = time.Now()
	stats.Duration = time.Since(start)
	snap.stats = stats
	return snap, nil
}

// decodeRows decodes rows in parallel chunks. Output order matches input
// order so merging stays deterministic.
func (x *Indexer) decodeRows(ctx context.Context, rows []store.Row) ([]decodedRow, error) {
	out := make([]decodedRow, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	chunk := (len(rows) + x.workers - 1) / x.workers
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(rows); lo += chunk {
		hi := min(lo+chunk, len(rows))
		g.Go(func() error {
			fold := cases.Fold()
			for i := lo; i < hi; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				item, err := models.DecodeItem(rows[i].Payload)
				if err != nil {
					out[i] = decodedRow{err: err}
					continue
				}
				out[i] = decodedRow{item: item, folded: fold.String(item.Name)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
