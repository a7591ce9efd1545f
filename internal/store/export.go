package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
)

// ExportStats reports how many rows were written per table.
type ExportStats struct {
	Tables map[string]int
	Bytes  int64
}

// Export copies the given tables from src into a new bbolt file at dstPath,
// compressing each payload. An existing file at dstPath is replaced.
func Export(ctx context.Context, src RecordStore, dstPath string, tables []string) (*ExportStats, error) {
	dir := filepath.Dir(dstPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	// Build next to the target and rename so readers never see a partial file.
	tmpPath := dstPath + ".tmp"
	_ = os.Remove(tmpPath)

	db, err := bolt.Open(tmpPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open export database: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	defer enc.Close()

	stats := &ExportStats{Tables: make(map[string]int, len(tables))}
	for _, table := range tables {
		if err := ValidateTable(table); err != nil {
			db.Close()
			return nil, err
		}
		rows, err := src.FetchAll(ctx, table)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("export %s: %w", table, err)
		}

		err = db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists([]byte(table))
			if err != nil {
				return fmt.Errorf("create bucket %s: %w", table, err)
			}
			for _, row := range rows {
				v := enc.EncodeAll(row.Payload, nil)
				if err := b.Put(hashKey(row.Key), v); err != nil {
					return err
				}
				stats.Bytes += int64(len(v))
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		stats.Tables[table] = len(rows)
	}

	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("close export database: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		return nil, fmt.Errorf("finalize export: %w", err)
	}

	return stats, nil
}
