package manifest

import (
	"sync"
	"time"

	"github.com/JackyBoizy/D2Armory/internal/models"
)

// Stats describes how a snapshot was built.
type Stats struct {
	Generation    uint64        `json:"generation"`
	Table         string        `json:"table"`
	Rows          int           `json:"rows"`
	Indexed       int           `json:"indexed"`
	SkippedDecode int           `json:"skippedDecode"`
	SkippedNoHash int           `json:"skippedNoHash"`
	Duplicates    int           `json:"duplicates"`
	LoadedAt      time.Time     `json:"loadedAt"`
	Duration      time.Duration `json:"duration"`
}

// Entry is one listing row of a snapshot: the summary plus its case-folded
// name for search.
type Entry struct {
	Summary    models.ItemSummary
	FoldedName string
}

// Snapshot is an immutable view of the indexed manifest. The full-record map
// and the summary map always hold the same key set.
type Snapshot struct {
	items   map[models.Hash]*models.ItemDefinition
	entries []Entry
	byHash  map[models.Hash]int
	stats   Stats
	results *ResultCache
}

func newSnapshot(capacity, cacheSize int) *Snapshot {
	return &Snapshot{
		items:   make(map[models.Hash]*models.ItemDefinition, capacity),
		entries: make([]Entry, 0, capacity),
		byHash:  make(map[models.Hash]int, capacity),
		results: newResultCache(cacheSize),
	}
}

// put inserts or replaces an item. A replaced hash keeps its original
// position in the listing order. Only called while the snapshot is being
// built.
func (s *Snapshot) put(item *models.ItemDefinition, folded string) (replaced bool) {
	entry := Entry{Summary: item.Summary(), FoldedName: folded}
	if i, ok := s.byHash[item.Hash]; ok {
		s.entries[i] = entry
		replaced = true
	} else {
		s.byHash[item.Hash] = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	s.items[item.Hash] = item
	return replaced
}

// Get returns the full definition for hash.
func (s *Snapshot) Get(hash models.Hash) (*models.ItemDefinition, bool) {
	item, ok := s.items[hash]
	return item, ok
}

// Summary returns the listing projection for hash.
func (s *Snapshot) Summary(hash models.Hash) (models.ItemSummary, bool) {
	i, ok := s.byHash[hash]
	if !ok {
		return models.ItemSummary{}, false
	}
	return s.entries[i].Summary, true
}

// Entries returns the listing rows in insertion order. The slice is shared
// and must not be modified.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// Len returns the number of indexed items.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Stats returns the load statistics of the snapshot.
func (s *Snapshot) Stats() Stats {
	return s.stats
}

// Results returns the resolution cache bound to this snapshot. It is
// dropped together with the snapshot on reindex.
func (s *Snapshot) Results() *ResultCache {
	return s.results
}

// ResultCache memoizes resolved option columns per item hash. Simple size
// limiting: the cache is cleared when it reaches its bound.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[models.Hash][]models.ResolvedColumn
	max     int
}

func newResultCache(max int) *ResultCache {
	return &ResultCache{
		entries: make(map[models.Hash][]models.ResolvedColumn),
		max:     max,
	}
}

// Get returns the cached columns for hash.
func (c *ResultCache) Get(hash models.Hash) ([]models.ResolvedColumn, bool) {
	if c.max <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cols, ok := c.entries[hash]
	return cols, ok
}

// Put caches the columns for hash.
func (c *ResultCache) Put(hash models.Hash, cols []models.ResolvedColumn) {
	if c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		c.entries = make(map[models.Hash][]models.ResolvedColumn)
	}
	c.entries[hash] = cols
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
