// Package store provides read-only record stores over the Destiny manifest.
// A store hands out raw JSON payloads by table and hash; decoding is left to
// the caller.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/JackyBoizy/D2Armory/internal/models"
)

// Manifest tables the engine reads.
const (
	TableInventoryItems = "DestinyInventoryItemDefinition"
	TableSocketTypes    = "DestinySocketTypeDefinition"
	TablePlugSets       = "DestinyPlugSetDefinition"
)

// Backend selects a RecordStore implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
)

var (
	ErrInvalidTable  = errors.New("invalid table name")
	ErrTableNotFound = errors.New("table not found")
	ErrClosed        = errors.New("store closed")
)

// Row is one raw record of a table.
type Row struct {
	Key     models.Hash
	Payload []byte
}

// RecordStore is a read-only keyed view over the manifest tables.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// FetchAll returns every row of a table in storage order.
	FetchAll(ctx context.Context, table string) ([]Row, error)
	// FetchOne returns the payload stored under key, or false when absent.
	FetchOne(ctx context.Context, table string, key models.Hash) ([]byte, bool, error)
	Close() error
}

// TableLister is implemented by stores that can enumerate their tables.
type TableLister interface {
	Tables(ctx context.Context) ([]string, error)
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTable rejects anything that is not a plain identifier. Table names
// end up in SQL text, so this is the only thing standing between a caller and
// the query.
func ValidateTable(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

// Open opens the manifest at path with the given backend.
func Open(backend Backend, path string) (RecordStore, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(path)
	case BackendBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
