// Package models defines the manifest records the engine indexes and resolves:
// item definitions, their sockets, socket types, plug sets, and resolved
// option columns.
package models

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ItemType is the manifest's item category code.
type ItemType int

// Item type codes offered by the browser. None is also what the manifest
// uses for "general" items.
const (
	ItemTypeNone   ItemType = 0
	ItemTypeArmor  ItemType = 2
	ItemTypeWeapon ItemType = 3
)

// ErrNoHash is returned when a payload decodes but carries neither "hash" nor
// "itemHash".
var ErrNoHash = errors.New("record has no hash")

// Inventory holds the inventory metadata of an item.
type Inventory struct {
	BucketTypeHash Hash `json:"bucketTypeHash"`
	TierType       int  `json:"tierType"`
}

// Plug holds the plug metadata carried by plug items (perks, mods, ...).
type Plug struct {
	PlugCategoryIdentifier string `json:"plugCategoryIdentifier"`
	PlugCategoryHash       Hash   `json:"plugCategoryHash"`
}

// SocketEntry is one socket of an item. Zero hashes and nil slices mean the
// reference is absent.
type SocketEntry struct {
	SocketTypeHash        Hash   `json:"socketTypeHash"`
	CategoryHashes        []Hash `json:"socketCategoryHashes,omitempty"`
	ReusablePlugSetHash   Hash   `json:"reusablePlugSetHash,omitempty"`
	RandomizedPlugSetHash Hash   `json:"randomizedPlugSetHash,omitempty"`
	ReusablePlugItems     []Hash `json:"reusablePlugItems,omitempty"`
	SingleInitialItemHash Hash   `json:"singleInitialItemHash,omitempty"`
}

// ItemDefinition is a decoded inventory item record. It is immutable once
// indexed; Raw keeps the original payload for detail views.
type ItemDefinition struct {
	Hash                Hash          `json:"hash"`
	Name                string        `json:"name"`
	Icon                string        `json:"icon"`
	Description         string        `json:"description"`
	ItemType            ItemType      `json:"itemType"`
	ItemTypeDisplayName string        `json:"itemTypeDisplayName"`
	Inventory           Inventory     `json:"inventory"`
	Plug                *Plug         `json:"plug,omitempty"`
	Sockets             []SocketEntry `json:"sockets,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// PlugCategoryIdentifier returns the plug category, or "" for non-plug items.
func (d *ItemDefinition) PlugCategoryIdentifier() string {
	if d.Plug == nil {
		return ""
	}
	return d.Plug.PlugCategoryIdentifier
}

// Summary projects the definition onto its listing fields.
func (d *ItemDefinition) Summary() ItemSummary {
	return ItemSummary{
		Hash:                d.Hash,
		Name:                d.Name,
		Icon:                d.Icon,
		ItemType:            d.ItemType,
		ItemTypeDisplayName: d.ItemTypeDisplayName,
		BucketHash:          d.Inventory.BucketTypeHash,
		TierType:            d.Inventory.TierType,
	}
}

// MarshalJSON returns the original payload when one is attached.
func (d *ItemDefinition) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	type plain ItemDefinition
	return json.Marshal((*plain)(d))
}

// ItemSummary is the lightweight listing projection of an ItemDefinition.
type ItemSummary struct {
	Hash                Hash     `json:"hash"`
	Name                string   `json:"name"`
	Icon                string   `json:"icon"`
	ItemType            ItemType `json:"itemType"`
	ItemTypeDisplayName string   `json:"itemTypeDisplayName"`
	BucketHash          Hash     `json:"bucketHash"`
	TierType            int      `json:"tierType"`
}

// rawItem mirrors the manifest layout of DestinyInventoryItemDefinition.
type rawItem struct {
	Hash              *Hash `json:"hash"`
	ItemHash          *Hash `json:"itemHash"`
	DisplayProperties struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"displayProperties"`
	ItemType            ItemType    `json:"itemType"`
	ItemTypeDisplayName string      `json:"itemTypeDisplayName"`
	Inventory           *Inventory  `json:"inventory"`
	Plug                *Plug       `json:"plug"`
	Sockets             *rawSockets `json:"sockets"`
}

type rawSockets struct {
	SocketEntries    []rawSocketEntry `json:"socketEntries"`
	SocketCategories []struct {
		SocketCategoryHash Hash  `json:"socketCategoryHash"`
		SocketIndexes      []int `json:"socketIndexes"`
	} `json:"socketCategories"`
}

type rawSocketEntry struct {
	SocketTypeHash        Hash      `json:"socketTypeHash"`
	SocketCategoryHashes  []Hash    `json:"socketCategoryHashes"`
	SingleInitialItemHash Hash      `json:"singleInitialItemHash"`
	ReusablePlugSetHash   Hash      `json:"reusablePlugSetHash"`
	RandomizedPlugSetHash Hash      `json:"randomizedPlugSetHash"`
	ReusablePlugItems     []plugRef `json:"reusablePlugItems"`
}

// plugRef accepts both {"plugItemHash": N} objects and bare numbers.
type plugRef struct {
	PlugItemHash Hash
}

func (p *plugRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '{' {
		if string(data) == "null" {
			return nil
		}
		return json.Unmarshal(data, &p.PlugItemHash)
	}
	var obj struct {
		PlugItemHash Hash `json:"plugItemHash"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.PlugItemHash = obj.PlugItemHash
	return nil
}

func plugHashes(refs []plugRef) []Hash {
	if len(refs) == 0 {
		return nil
	}
	out := make([]Hash, 0, len(refs))
	for _, r := range refs {
		if r.PlugItemHash != 0 {
			out = append(out, r.PlugItemHash)
		}
	}
	return out
}

// DecodeItem decodes an inventory item payload. It returns ErrNoHash when the
// payload is valid but carries no usable hash.
func DecodeItem(payload []byte) (*ItemDefinition, error) {
	var raw rawItem
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	var hash Hash
	switch {
	case raw.Hash != nil:
		hash = *raw.Hash
	case raw.ItemHash != nil:
		hash = *raw.ItemHash
	default:
		return nil, ErrNoHash
	}

	item := &ItemDefinition{
		Hash:                hash,
		Name:                raw.DisplayProperties.Name,
		Icon:                raw.DisplayProperties.Icon,
		Description:         raw.DisplayProperties.Description,
		ItemType:            raw.ItemType,
		ItemTypeDisplayName: raw.ItemTypeDisplayName,
		Plug:                raw.Plug,
		Raw:                 json.RawMessage(payload),
	}
	if raw.Inventory != nil {
		item.Inventory = *raw.Inventory
	}
	if raw.Sockets != nil {
		item.Sockets = decodeSockets(raw.Sockets)
	}
	return item, nil
}

func decodeSockets(raw *rawSockets) []SocketEntry {
	if len(raw.SocketEntries) == 0 {
		return nil
	}

	// Item-level categories list the socket indexes they own.
	byIndex := make(map[int][]Hash)
	for _, cat := range raw.SocketCategories {
		for _, idx := range cat.SocketIndexes {
			byIndex[idx] = append(byIndex[idx], cat.SocketCategoryHash)
		}
	}

	entries := make([]SocketEntry, len(raw.SocketEntries))
	for i, e := range raw.SocketEntries {
		categories := e.SocketCategoryHashes
		if len(categories) == 0 {
			categories = byIndex[i]
		}
		entries[i] = SocketEntry{
			SocketTypeHash:        e.SocketTypeHash,
			CategoryHashes:        categories,
			ReusablePlugSetHash:   e.ReusablePlugSetHash,
			RandomizedPlugSetHash: e.RandomizedPlugSetHash,
			ReusablePlugItems:     plugHashes(e.ReusablePlugItems),
			SingleInitialItemHash: e.SingleInitialItemHash,
		}
	}
	return entries
}
