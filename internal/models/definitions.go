package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// SocketTypeDefinition is the subset of DestinySocketTypeDefinition the
// resolver needs.
type SocketTypeDefinition struct {
	Hash               Hash `json:"hash"`
	SocketCategoryHash Hash `json:"socketCategoryHash"`
}

// PlugSetDefinition is a shared pool of plug items referenced by sockets.
type PlugSetDefinition struct {
	Hash                Hash
	ReusablePlugItems   []Hash
	RandomizedPlugItems []Hash
}

// Items returns the randomized list when present, else the reusable list.
func (p *PlugSetDefinition) Items() []Hash {
	if len(p.RandomizedPlugItems) > 0 {
		return p.RandomizedPlugItems
	}
	return p.ReusablePlugItems
}

// DecodeSocketType decodes a socket type payload.
func DecodeSocketType(payload []byte) (*SocketTypeDefinition, error) {
	var def SocketTypeDefinition
	if err := json.Unmarshal(payload, &def); err != nil {
		return nil, fmt.Errorf("decode socket type: %w", err)
	}
	return &def, nil
}

// DecodePlugSet decodes a plug set payload.
func DecodePlugSet(payload []byte) (*PlugSetDefinition, error) {
	var raw struct {
		Hash                Hash      `json:"hash"`
		ReusablePlugItems   []plugRef `json:"reusablePlugItems"`
		RandomizedPlugItems []plugRef `json:"randomizedPlugItems"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode plug set: %w", err)
	}
	return &PlugSetDefinition{
		Hash:                raw.Hash,
		ReusablePlugItems:   plugHashes(raw.ReusablePlugItems),
		RandomizedPlugItems: plugHashes(raw.RandomizedPlugItems),
	}, nil
}
