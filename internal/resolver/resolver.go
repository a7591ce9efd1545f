// Package resolver rebuilds the selectable option columns of an item by
// walking its socket graph: socket to socket type and category, plug set to
// plug items, then through a validity filter that drops cosmetic plugs.
//
// Every lookup that misses, or fails in the record store, contributes
// nothing. Resolution itself never fails.
package resolver

import (
	"context"
	"log/slog"

	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/manifest"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/store"
)

// Categories maps socket category hashes to columns.
type Categories struct {
	Barrel   models.Hash `toml:"barrel"`
	Magazine models.Hash `toml:"magazine"`
	Trait    models.Hash `toml:"trait"`
	Origin   models.Hash `toml:"origin"`
}

// DefaultCategories returns the built-in category hashes. Manifests that
// use different ones override them in the [categories] config section.
func DefaultCategories() Categories {
	return Categories{
		Barrel:   2614797986,
		Magazine: 1288200359,
		Trait:    4241085061,
		Origin:   3993098925,
	}
}

// Tables names the manifest tables the resolver reads.
type Tables struct {
	Items       string
	SocketTypes string
	PlugSets    string
}

// DefaultTables returns the standard manifest table names.
func DefaultTables() Tables {
	return Tables{
		Items:       store.TableInventoryItems,
		SocketTypes: store.TableSocketTypes,
		PlugSets:    store.TablePlugSets,
	}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithCategories overrides the category table.
func WithCategories(c Categories) Option {
	return func(r *Resolver) { r.categories = c }
}

// WithTables overrides the table names.
func WithTables(t Tables) Option {
	return func(r *Resolver) { r.tables = t }
}

// Report counts what a single resolution could not use.
type Report struct {
	Sockets         int // sockets inspected
	Unclassified    int // sockets matching no known category
	NoCandidates    int // classified sockets with no candidate plugs
	ReferenceMisses int // socket types, plug sets or plug items not found
	StoreErrors     int // record store lookups that failed
	Filtered        int // candidates rejected by the validity filter
}

// Resolver resolves option columns. It is safe for concurrent use; all
// per-call state lives in a call value.
type Resolver struct {
	store      store.RecordStore
	categories Categories
	tables     Tables
	logger     *slog.Logger
}

// New creates a Resolver reading cross-references from st.
func New(st store.RecordStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:      st,
		categories: DefaultCategories(),
		tables:     DefaultTables(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Default(r.logger).With("component", "resolver")
	return r
}

// Resolve returns the non-empty option columns of item in column order.
// Plug items are looked up in snap first and in the record store second.
func (r *Resolver) Resolve(ctx context.Context, snap *manifest.Snapshot, item *models.ItemDefinition) ([]models.ResolvedColumn, Report) {
	c := newCall(ctx, r, snap)
	if item == nil || len(item.Sockets) == 0 {
		return []models.ResolvedColumn{}, c.report
	}

	columns := newColumnSet()
	traits := 0
	for i := range item.Sockets {
		socket := &item.Sockets[i]
		c.report.Sockets++

		kind, ok := c.classify(socket)
		if !ok {
			c.report.Unclassified++
			continue
		}
		column := kind.column
		if kind.trait {
			traits++
			if traits > 1 {
				column = models.ColumnTrait2
			}
		}

		candidates := c.candidates(socket)
		if len(candidates) == 0 {
			c.report.NoCandidates++
			continue
		}

		for _, hash := range candidates {
			plug, ok := c.plugItem(hash)
			if !ok {
				continue
			}
			if !c.valid(plug) {
				c.report.Filtered++
				continue
			}
			columns.add(column, plug)
		}
	}

	if c.report.ReferenceMisses > 0 || c.report.StoreErrors > 0 {
		r.logger.Debug("resolved with gaps",
			"item", item.Hash,
			"reference_misses", c.report.ReferenceMisses,
			"store_errors", c.report.StoreErrors,
		)
	}
	return columns.ordered(), c.report
}

type classification struct {
	column models.Column
	trait  bool
}

func (r *Resolver) classifyCategory(hash models.Hash) (classification, bool) {
	if hash == 0 {
		return classification{}, false
	}
	switch hash {
	case r.categories.Barrel:
		return classification{column: models.ColumnBarrel}, true
	case r.categories.Magazine:
		return classification{column: models.ColumnMagazine}, true
	case r.categories.Trait:
		return classification{column: models.ColumnTrait1, trait: true}, true
	case r.categories.Origin:
		return classification{column: models.ColumnOrigin}, true
	}
	return classification{}, false
}

// columnSet accumulates plugs per column, dropping repeated hashes.
type columnSet struct {
	items map[models.Column][]*models.ItemDefinition
	seen  map[models.Column]map[models.Hash]struct{}
}

func newColumnSet() *columnSet {
	return &columnSet{
		items: make(map[models.Column][]*models.ItemDefinition),
		seen:  make(map[models.Column]map[models.Hash]struct{}),
	}
}

func (s *columnSet) add(column models.Column, item *models.ItemDefinition) {
	seen, ok := s.seen[column]
	if !ok {
		seen = make(map[models.Hash]struct{})
		s.seen[column] = seen
	}
	if _, dup := seen[item.Hash]; dup {
		return
	}
	seen[item.Hash] = struct{}{}
	s.items[column] = append(s.items[column], item)
}

func (s *columnSet) ordered() []models.ResolvedColumn {
	out := make([]models.ResolvedColumn, 0, len(s.items))
	for _, column := range models.ColumnOrder {
		if items := s.items[column]; len(items) > 0 {
			out = append(out, models.ResolvedColumn{Column: column, Items: items})
		}
	}
	return out
}
