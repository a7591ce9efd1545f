package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
)

// BoltStore serves a manifest exported to a bbolt file. Each table is a
// bucket keyed by the big-endian hash; values are zstd-compressed JSON.
type BoltStore struct {
	db  *bolt.DB
	dec *zstd.Decoder
}

// OpenBolt opens an exported manifest read-only.
func OpenBolt(path string) (*BoltStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	return &BoltStore{db: db, dec: dec}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.dec.Close()
	return s.db.Close()
}

func hashKey(h models.Hash) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], uint32(h))
	return k[:]
}

// FetchAll returns every row of the table in key order.
func (s *BoltStore) FetchAll(ctx context.Context, table string) ([]Row, error) {
	var rows []Row
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
		rows = make([]Row, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(k) != 4 {
				return nil
			}
			// A value that fails to decompress is handed through as-is and
			// will be skipped by the decoder like any malformed payload.
			payload, err := s.dec.DecodeAll(v, nil)
			if err != nil {
				payload = append([]byte(nil), v...)
			}
			rows = append(rows, Row{Key: models.Hash(binary.BigEndian.Uint32(k)), Payload: payload})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchOne returns a single payload by hash.
func (s *BoltStore) FetchOne(_ context.Context, table string, key models.Hash) ([]byte, bool, error) {
	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
		v := b.Get(hashKey(key))
		if v == nil {
			return nil
		}
		out, err := s.dec.DecodeAll(v, nil)
		if err != nil {
			return fmt.Errorf("decompress %s/%s: %w", table, key, err)
		}
		payload = out
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, payload != nil, nil
}

// Tables lists the exported tables.
func (s *BoltStore) Tables(_ context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}
