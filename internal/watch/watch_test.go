package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReindexer struct {
	calls atomic.Int32
	err   error
}

func (c *countingReindexer) Reindex(context.Context) error {
	c.calls.Add(1)
	return c.err
}

type flakyReindexer struct {
	failures int32
	calls    atomic.Int32
	ok       atomic.Int32
}

func (f *flakyReindexer) Reindex(context.Context) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("file is not a database")
	}
	f.ok.Add(1)
	return nil
}

func newTestWatcher(t *testing.T, target Reindexer) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.sqlite3")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	w := New(target, Config{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		Retry:    &RetryConfig{MaxRetries: 1, InitialBackoff: 5 * time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })
	return w, path
}

func TestWatcher_ReindexesOnWrite(t *testing.T) {
	target := &countingReindexer{}
	_, path := newTestWatcher(t, target)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))

	assert.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	target := &countingReindexer{}
	_, path := newTestWatcher(t, target)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0644))
	}

	require.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Less(t, target.calls.Load(), int32(5))
}

func TestWatcher_ReplacedByRename(t *testing.T) {
	target := &countingReindexer{}
	_, path := newTestWatcher(t, target)

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0644))
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	target := &countingReindexer{}
	_, path := newTestWatcher(t, target)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0644))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), target.calls.Load())
}

func TestWatcher_SurvivesReindexFailure(t *testing.T) {
	target := &countingReindexer{err: errors.New("locked")}
	_, path := newTestWatcher(t, target)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	require.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	before := target.calls.Load()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v3"), 0644))
	assert.Eventually(t, func() bool { return target.calls.Load() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_RetriesUntilReindexSucceeds(t *testing.T) {
	target := &flakyReindexer{failures: 1}
	_, path := newTestWatcher(t, target)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))

	assert.Eventually(t, func() bool { return target.ok.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), target.calls.Load())
}

func TestWatcher_StartTwiceAndClose(t *testing.T) {
	w, _ := newTestWatcher(t, &countingReindexer{})

	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(&countingReindexer{}, Config{Path: filepath.Join(t.TempDir(), "nope", "manifest.db")})

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch")
}
