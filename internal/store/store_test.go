package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestManifest writes a small SQLite manifest with the Bungie table layout
// and returns its path.
func newTestManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world_sql_content.sqlite3")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{TableInventoryItems, TablePlugSets} {
		_, err := db.Exec("CREATE TABLE " + table + " (id INTEGER PRIMARY KEY NOT NULL, json BLOB)")
		require.NoError(t, err)
	}

	rows := []struct {
		table string
		hash  models.Hash
		json  string
	}{
		{TableInventoryItems, 1, `{"hash":1,"displayProperties":{"name":"Hawkmoon"},"itemType":3}`},
		{TableInventoryItems, 2, `{"hash":2,"displayProperties":{"name":"Helm"},"itemType":2}`},
		{TableInventoryItems, 4294967295, `{"hash":4294967295,"displayProperties":{"name":"High"},"itemType":3}`},
		{TablePlugSets, 500, `{"hash":500,"reusablePlugItems":[{"plugItemHash":1}]}`},
	}
	for _, r := range rows {
		_, err := db.Exec("INSERT INTO "+r.table+" (id, json) VALUES (?, ?)", r.hash.RowID(), []byte(r.json))
		require.NoError(t, err)
	}
	return path
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(newTestManifest(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// ==================== Validation Tests ====================

func TestValidateTable(t *testing.T) {
	assert.NoError(t, ValidateTable(TableInventoryItems))
	assert.NoError(t, ValidateTable("_private2"))
	assert.ErrorIs(t, ValidateTable(""), ErrInvalidTable)
	assert.ErrorIs(t, ValidateTable("items; DROP TABLE x"), ErrInvalidTable)
	assert.ErrorIs(t, ValidateTable("1abc"), ErrInvalidTable)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("postgres", "x")
	assert.Error(t, err)
}

// ==================== SQLite Tests ====================

func TestSQLiteStore_OpenMissingFile(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing.sqlite3"))
	assert.Error(t, err)
}

func TestSQLiteStore_FetchAll(t *testing.T) {
	st := newTestSQLiteStore(t)

	rows, err := st.FetchAll(context.Background(), TableInventoryItems)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Ordered by rowid, which is the signed id
	assert.Equal(t, models.Hash(4294967295), rows[0].Key)
	assert.Equal(t, models.Hash(1), rows[1].Key)
	assert.Equal(t, models.Hash(2), rows[2].Key)
	assert.Contains(t, string(rows[1].Payload), "Hawkmoon")
}

func TestSQLiteStore_FetchAllMissingTable(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.FetchAll(context.Background(), "DestinyNoSuchDefinition")
	assert.Error(t, err)

	_, err = st.FetchAll(context.Background(), "bad name")
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestSQLiteStore_FetchOne(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	payload, ok, err := st.FetchOne(ctx, TablePlugSets, 500)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(payload), "plugItemHash")

	// Hashes above MaxInt32 are stored under their signed id
	payload, ok, err = st.FetchOne(ctx, TableInventoryItems, 4294967295)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(payload), "High")

	_, ok, err = st.FetchOne(ctx, TablePlugSets, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_Tables(t *testing.T) {
	st := newTestSQLiteStore(t)

	names, err := st.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{TableInventoryItems, TablePlugSets}, names)
}

func TestSQLiteStore_ReadOnly(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.db.Exec("INSERT INTO " + TablePlugSets + " (id, json) VALUES (1, '{}')")
	assert.Error(t, err)
}

// ==================== Bolt Tests ====================

func TestExportAndBoltStore(t *testing.T) {
	src := newTestSQLiteStore(t)
	ctx := context.Background()
	dst := filepath.Join(t.TempDir(), "out", "manifest.db")

	stats, err := Export(ctx, src, dst, []string{TableInventoryItems, TablePlugSets})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tables[TableInventoryItems])
	assert.Equal(t, 1, stats.Tables[TablePlugSets])
	assert.Positive(t, stats.Bytes)

	st, err := Open(BackendBolt, dst)
	require.NoError(t, err)
	defer st.Close()

	rows, err := st.FetchAll(ctx, TableInventoryItems)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Bolt orders by big-endian key, i.e. by unsigned hash
	assert.Equal(t, models.Hash(1), rows[0].Key)
	assert.Equal(t, models.Hash(2), rows[1].Key)
	assert.Equal(t, models.Hash(4294967295), rows[2].Key)
	assert.JSONEq(t, `{"hash":1,"displayProperties":{"name":"Hawkmoon"},"itemType":3}`, string(rows[0].Payload))

	payload, ok, err := st.FetchOne(ctx, TablePlugSets, 500)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(payload), "plugItemHash")

	_, ok, err = st.FetchOne(ctx, TablePlugSets, 501)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = st.FetchOne(ctx, TableSocketTypes, 1)
	assert.ErrorIs(t, err, ErrTableNotFound)

	lister, ok := st.(TableLister)
	require.True(t, ok)
	names, err := lister.Tables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{TableInventoryItems, TablePlugSets}, names)
}

func TestExport_SourceFailure(t *testing.T) {
	src := NewMemoryStore()
	src.Err = errors.New("disk on fire")

	_, err := Export(context.Background(), src, filepath.Join(t.TempDir(), "x.db"), []string{TableInventoryItems})
	assert.ErrorContains(t, err, "disk on fire")
}

// ==================== Memory Tests ====================

func TestMemoryStore(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	st.Put(TableInventoryItems, 1, `{"hash":1}`)
	st.Put(TableInventoryItems, 1, `{"hash":1,"v":2}`)

	rows, err := st.FetchAll(ctx, TableInventoryItems)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	payload, ok, err := st.FetchOne(ctx, TableInventoryItems, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"hash":1,"v":2}`, string(payload))
	assert.Equal(t, int64(1), st.FetchOneCalls())

	_, err = st.FetchAll(ctx, TablePlugSets)
	assert.ErrorIs(t, err, ErrTableNotFound)

	st.TableErrs[TablePlugSets] = errors.New("boom")
	_, _, err = st.FetchOne(ctx, TablePlugSets, 1)
	assert.EqualError(t, err, "boom")
}

// ==================== FileStore Tests ====================

func TestFileStore_ReopenAndSwap(t *testing.T) {
	path := newTestManifest(t)
	fs, err := OpenFile(BackendSQLite, path)
	require.NoError(t, err)
	defer fs.Close()
	ctx := context.Background()

	// Replace the file by rename with one that lacks item 2
	next := filepath.Join(t.TempDir(), "next.sqlite3")
	db, err := sql.Open("sqlite", next)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE " + TableInventoryItems + " (id INTEGER PRIMARY KEY NOT NULL, json BLOB)")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, os.Rename(next, path))

	fresh, err := fs.Reopen()
	require.NoError(t, err)
	require.NoError(t, fs.Swap(fresh))

	_, ok, err := fs.FetchOne(ctx, TableInventoryItems, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	tables, err := fs.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{TableInventoryItems}, tables)
}

func TestFileStore_Closed(t *testing.T) {
	fs, err := OpenFile(BackendSQLite, newTestManifest(t))
	require.NoError(t, err)
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	_, err = fs.FetchAll(context.Background(), TableInventoryItems)
	assert.ErrorIs(t, err, ErrClosed)

	fresh, err := OpenSQLite(newTestManifest(t))
	require.NoError(t, err)
	assert.ErrorIs(t, fs.Swap(fresh), ErrClosed)
}

func TestFileStore_ReopenMissingFile(t *testing.T) {
	path := newTestManifest(t)
	fs, err := OpenFile(BackendSQLite, path)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, os.Remove(path))
	_, err = fs.Reopen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reopen manifest")
}
