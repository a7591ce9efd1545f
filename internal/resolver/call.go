package resolver

import (
	"context"
	"strings"

	"github.com/JackyBoizy/D2Armory/internal/manifest"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"golang.org/x/text/cases"
)

// Strategy is one source of candidate plug hashes for a socket.
type Strategy string

const (
	// StrategyPlugSet reads the socket's randomized plug set, else its
	// reusable plug set, from the record store.
	StrategyPlugSet Strategy = "plug-set"
	// StrategyReusablePlugItems uses the plug list embedded in the socket.
	StrategyReusablePlugItems Strategy = "reusable-plug-items"
	// StrategySingleInitialItem uses the socket's single default plug.
	StrategySingleInitialItem Strategy = "single-initial-item"
)

// CandidateStrategies is the order candidate sources are tried in. The
// first one that yields any hash wins.
var CandidateStrategies = []Strategy{
	StrategyPlugSet,
	StrategyReusablePlugItems,
	StrategySingleInitialItem,
}

// Substrings that mark a plug as cosmetic or otherwise non-functional.
var excludedPlugCategories = []string{
	"memento",
	"ornament",
	"tracker",
	"masterwork",
	"mod",
	"extractor",
}

const (
	excludedName     = "deepsight"
	excludedTypeName = "shader"
)

// call holds the memo tables of one resolution. Socket types, plug sets and
// plug items are each looked up at most once per call, misses included.
type call struct {
	ctx  context.Context
	r    *Resolver
	snap *manifest.Snapshot
	fold cases.Caser

	socketTypes map[models.Hash]*models.SocketTypeDefinition
	plugSets    map[models.Hash]*models.PlugSetDefinition
	plugItems   map[models.Hash]*models.ItemDefinition

	report Report
}

func newCall(ctx context.Context, r *Resolver, snap *manifest.Snapshot) *call {
	return &call{
		ctx:         ctx,
		r:           r,
		snap:        snap,
		fold:        cases.Fold(),
		socketTypes: make(map[models.Hash]*models.SocketTypeDefinition),
		plugSets:    make(map[models.Hash]*models.PlugSetDefinition),
		plugItems:   make(map[models.Hash]*models.ItemDefinition),
	}
}

// classify picks the socket's column. Embedded category hashes are checked
// first; the socket type's category is the fallback.
func (c *call) classify(socket *models.SocketEntry) (classification, bool) {
	if len(socket.CategoryHashes) > 0 {
		for _, hash := range socket.CategoryHashes {
			if k, ok := c.r.classifyCategory(hash); ok {
				return k, true
			}
		}
		return classification{}, false
	}

	st, ok := c.socketType(socket.SocketTypeHash)
	if !ok {
		return classification{}, false
	}
	return c.r.classifyCategory(st.SocketCategoryHash)
}

func (c *call) candidates(socket *models.SocketEntry) []models.Hash {
	for _, strategy := range CandidateStrategies {
		if hashes := c.run(strategy, socket); len(hashes) > 0 {
			return hashes
		}
	}
	return nil
}

func (c *call) run(strategy Strategy, socket *models.SocketEntry) []models.Hash {
	switch strategy {
	case StrategyPlugSet:
		for _, hash := range []models.Hash{socket.RandomizedPlugSetHash, socket.ReusablePlugSetHash} {
			if ps, ok := c.plugSet(hash); ok {
				if items := ps.Items(); len(items) > 0 {
					return items
				}
			}
		}
	case StrategyReusablePlugItems:
		return socket.ReusablePlugItems
	case StrategySingleInitialItem:
		if socket.SingleInitialItemHash != 0 {
			return []models.Hash{socket.SingleInitialItemHash}
		}
	}
	return nil
}

// valid reports whether a plug is a functional option worth showing.
func (c *call) valid(plug *models.ItemDefinition) bool {
	if plug.Icon == "" {
		return false
	}
	category := c.fold.String(plug.PlugCategoryIdentifier())
	for _, s := range excludedPlugCategories {
		if strings.Contains(category, s) {
			return false
		}
	}
	if strings.Contains(c.fold.String(plug.Name), excludedName) {
		return false
	}
	return !strings.Contains(c.fold.String(plug.ItemTypeDisplayName), excludedTypeName)
}

// fetch reads one payload from the record store. Failures count as misses.
func (c *call) fetch(table string, hash models.Hash) ([]byte, bool) {
	payload, ok, err := c.r.store.FetchOne(c.ctx, table, hash)
	if err != nil {
		c.report.StoreErrors++
		c.r.logger.Debug("record lookup failed", "table", table, "hash", hash, "error", err)
		return nil, false
	}
	if !ok {
		c.report.ReferenceMisses++
		return nil, false
	}
	return payload, true
}

func (c *call) socketType(hash models.Hash) (*models.SocketTypeDefinition, bool) {
	if hash == 0 {
		return nil, false
	}
	if st, ok := c.socketTypes[hash]; ok {
		return st, st != nil
	}
	var st *models.SocketTypeDefinition
	if payload, ok := c.fetch(c.r.tables.SocketTypes, hash); ok {
		if def, err := models.DecodeSocketType(payload); err == nil {
			st = def
		} else {
			c.report.ReferenceMisses++
		}
	}
	c.socketTypes[hash] = st
	return st, st != nil
}

func (c *call) plugSet(hash models.Hash) (*models.PlugSetDefinition, bool) {
	if hash == 0 {
		return nil, false
	}
	if ps, ok := c.plugSets[hash]; ok {
		return ps, ps != nil
	}
	var ps *models.PlugSetDefinition
	if payload, ok := c.fetch(c.r.tables.PlugSets, hash); ok {
		if def, err := models.DecodePlugSet(payload); err == nil {
			ps = def
		} else {
			c.report.ReferenceMisses++
		}
	}
	c.plugSets[hash] = ps
	return ps, ps != nil
}

func (c *call) plugItem(hash models.Hash) (*models.ItemDefinition, bool) {
	if item, ok := c.snap.Get(hash); ok {
		return item, true
	}
	if item, ok := c.plugItems[hash]; ok {
		return item, item != nil
	}
	var item *models.ItemDefinition
	if payload, ok := c.fetch(c.r.tables.Items, hash); ok {
		if def, err := models.DecodeItem(payload); err == nil {
			item = def
		} else {
			c.report.ReferenceMisses++
		}
	}
	c.plugItems[hash] = item
	return item, item != nil
}
