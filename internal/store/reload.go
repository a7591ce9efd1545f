package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/JackyBoizy/D2Armory/internal/models"
)

// Reopener is implemented by stores whose backing file can be replaced while
// they are open. Reopen opens a second handle on whatever the path now holds;
// Swap installs it and closes the previous one.
type Reopener interface {
	Reopen() (RecordStore, error)
	Swap(next RecordStore) error
}

// FileStore keeps one backend handle on a manifest path. SQLite connections
// and bolt mmaps stay on the inode they opened, so a manifest replaced by
// rename is only visible through a new handle.
type FileStore struct {
	backend Backend
	path    string

	mu     sync.RWMutex
	cur    RecordStore
	closed bool
}

// OpenFile opens path with backend behind a reopenable handle.
func OpenFile(backend Backend, path string) (*FileStore, error) {
	st, err := Open(backend, path)
	if err != nil {
		return nil, err
	}
	return &FileStore{backend: backend, path: path, cur: st}, nil
}

// Path returns the manifest path.
func (f *FileStore) Path() string {
	return f.path
}

// Reopen opens the path again without touching the active handle.
func (f *FileStore) Reopen() (RecordStore, error) {
	st, err := Open(f.backend, f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen manifest: %w", err)
	}
	return st, nil
}

// Swap makes next the active handle. The old handle is closed once reads
// that started on it have returned.
func (f *FileStore) Swap(next RecordStore) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		next.Close()
		return ErrClosed
	}
	old := f.cur
	f.cur = next
	f.mu.Unlock()
	return old.Close()
}

func (f *FileStore) acquire() (RecordStore, func(), error) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	return f.cur, f.mu.RUnlock, nil
}

func (f *FileStore) FetchAll(ctx context.Context, table string) ([]Row, error) {
	st, release, err := f.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return st.FetchAll(ctx, table)
}

func (f *FileStore) FetchOne(ctx context.Context, table string, key models.Hash) ([]byte, bool, error) {
	st, release, err := f.acquire()
	if err != nil {
		return nil, false, err
	}
	defer release()
	return st.FetchOne(ctx, table, key)
}

// Tables lists the tables of the active handle.
func (f *FileStore) Tables(ctx context.Context) ([]string, error) {
	st, release, err := f.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	lister, ok := st.(TableLister)
	if !ok {
		return nil, fmt.Errorf("%s backend cannot list tables", f.backend)
	}
	return lister.Tables(ctx)
}

// Close closes the active handle. Later calls fail with ErrClosed.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.cur.Close()
}
