// Package query answers listing and lookup requests against the current
// manifest snapshot. Every call is a pure read; nothing here touches the
// record store.
package query

import (
	"math"
	"strings"

	"github.com/JackyBoizy/D2Armory/internal/manifest"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"golang.org/x/text/cases"
)

// DefaultLimit is the page size used when Options.Limit is not positive.
const DefaultLimit = 200

// DefaultItemType is the item type searched when Options.ItemType is nil.
const DefaultItemType = models.ItemTypeWeapon

// SnapshotSource hands out the active snapshot.
type SnapshotSource interface {
	Snapshot() *manifest.Snapshot
}

// Options controls Search. Invalid values fall back to the defaults.
type Options struct {
	Text     string           // Case-insensitive substring of the name
	ItemType *models.ItemType // nil means DefaultItemType
	AllTypes bool             // Ignore ItemType entirely
	Limit    int              // <= 0 means DefaultLimit
	Offset   int              // < 0 means 0
}

// Result is one page of matches. Total counts every match, not just the page.
type Result struct {
	Total int                  `json:"total"`
	Items []models.ItemSummary `json:"items"`
}

// Service runs queries.
type Service struct {
	source SnapshotSource
}

// NewService creates a query service over source.
func NewService(source SnapshotSource) *Service {
	return &Service{source: source}
}

func (o Options) normalized() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.ItemType == nil && !o.AllTypes {
		t := DefaultItemType
		o.ItemType = &t
	}
	return o
}

// Search filters the snapshot's summaries by item type and name, in
// insertion order, and returns the requested page.
func (s *Service) Search(opts Options) Result {
	opts = opts.normalized()
	snap := s.source.Snapshot()

	needle := ""
	if opts.Text != "" {
		needle = cases.Fold().String(opts.Text)
	}

	res := Result{Items: []models.ItemSummary{}}
	end := opts.Offset + opts.Limit
	if end < opts.Offset {
		end = math.MaxInt
	}
	for _, e := range snap.Entries() {
		if !opts.AllTypes && e.Summary.ItemType != *opts.ItemType {
			continue
		}
		if needle != "" && !strings.Contains(e.FoldedName, needle) {
			continue
		}
		if res.Total >= opts.Offset && res.Total < end {
			res.Items = append(res.Items, e.Summary)
		}
		res.Total++
	}
	return res
}

// GetFull returns the full definition for hash from the current snapshot.
func (s *Service) GetFull(hash models.Hash) (*models.ItemDefinition, bool) {
	return s.source.Snapshot().Get(hash)
}
