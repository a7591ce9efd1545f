package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/JackyBoizy/D2Armory/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore reads the manifest SQLite file published by Bungie. Every
// table has the layout (id INTEGER PRIMARY KEY, json BLOB) where id is the
// signed form of the definition hash.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens the manifest database read-only.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the manifest file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// FetchAll returns every row of table ordered by rowid
func (s *SQLiteStore) FetchAll(ctx context.Context, table string) ([]Row, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, json FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		result = append(result, Row{Key: models.Hash(uint32(id)), Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}

	return result, nil
}

// FetchOne looks a row up by hash. Both the signed and unsigned id forms are
// tried since tools that rebuild the manifest do not agree on one.
func (s *SQLiteStore) FetchOne(ctx context.Context, table string, key models.Hash) ([]byte, bool, error) {
	if err := ValidateTable(table); err != nil {
		return nil, false, err
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT json FROM "+table+" WHERE id IN (?, ?) LIMIT 1",
		key.RowID(), int64(key),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", table, key, err)
	}

	return payload, true, nil
}

// Tables lists the tables present in the manifest
func (s *SQLiteStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
